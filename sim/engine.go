package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	// ScheduleAt registers an event that fires at an absolute time.
	ScheduleAt(t VTimeInSec, handler Handler, payload any) (EventHandle, error)

	// ScheduleAfter registers an event that fires after a delay from the
	// current time.
	ScheduleAfter(
		delay VTimeInSec,
		handler Handler,
		payload any,
	) (EventHandle, error)

	// Cancel prevents a scheduled event from firing. It is idempotent.
	Cancel(h EventHandle)
}

// A SimulationEndHandler is a handler that is called after the simulation ends.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine is a unit that keeps the discrete event simulation run.
type Engine interface {
	Hookable
	EventScheduler

	// Run processes events until the queue drains or a limit is hit.
	Run(limits RunLimits) (RunSummary, error)

	// Stop asks the engine to stop before the next event is processed.
	Stop()

	// Pause will pause the simulation until continue is called.
	Pause()

	// Continue will continue the paused simulation
	Continue()

	// NumEvents returns the number of events processed so far.
	NumEvents() uint64

	// NumPendingEvents returns the number of events waiting to fire.
	NumPendingEvents() int

	// State returns the state of the run loop.
	State() RunState

	// RegisterSimulationEndHandler registers a handler that perform some
	// actions after the simulation is finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes all the registered SimulationEndHandler
	Finished()
}

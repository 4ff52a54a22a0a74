package sim

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// A SerialEngine is an Engine that always run events one after another.
//
// Events are processed in (time, sequence) order. Handlers may schedule and
// cancel events and request a stop; the loop never runs two handlers at once
// and never recurses.
type SerialEngine struct {
	*HookableBase

	timeLock sync.RWMutex
	now      VTimeInSec

	queueLock sync.Mutex
	queue     *EventQueue

	numEvents     atomic.Uint64
	state         atomic.Int32
	running       atomic.Bool
	stopRequested atomic.Bool

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	simulationEndHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase: NewHookableBase(),
		queue:        NewEventQueue(),
	}
}

// ScheduleAt registers an event to happen at time t.
func (e *SerialEngine) ScheduleAt(
	t VTimeInSec,
	handler Handler,
	payload any,
) (EventHandle, error) {
	if handler == nil {
		return EventHandle{}, ErrNilHandler
	}

	if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
		return EventHandle{}, fmt.Errorf("%w: got %v", ErrInvalidTime, t)
	}

	now := e.readNow()
	if t < now {
		return EventHandle{}, fmt.Errorf(
			"%w: event @ %.10f, now %.10f",
			ErrOutOfOrderSchedule, t, now,
		)
	}

	e.queueLock.Lock()
	h := e.queue.Insert(t, handler, payload)
	e.queueLock.Unlock()

	return h, nil
}

// ScheduleAfter registers an event to happen after the given delay.
func (e *SerialEngine) ScheduleAfter(
	delay VTimeInSec,
	handler Handler,
	payload any,
) (EventHandle, error) {
	if delay < 0 {
		return EventHandle{}, fmt.Errorf("%w: got %.10f", ErrNegativeDelay, delay)
	}

	return e.ScheduleAt(e.readNow()+delay, handler, payload)
}

// Cancel marks a scheduled event so that it never fires.
func (e *SerialEngine) Cancel(h EventHandle) {
	e.queueLock.Lock()
	e.queue.Cancel(h)
	e.queueLock.Unlock()
}

// IsPending returns true if the event behind the handle may still fire.
func (e *SerialEngine) IsPending(h EventHandle) bool {
	e.queueLock.Lock()
	defer e.queueLock.Unlock()

	return e.queue.IsPending(h)
}

// Stop requests the run loop to return before processing the next event. The
// event being processed, if any, runs to completion.
func (e *SerialEngine) Stop() {
	e.stopRequested.Store(true)
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	t := e.now
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// Run processes the scheduled events until the queue drains or one of the
// limits is reached. An error returned by a handler stops the run and is
// returned to the caller.
func (e *SerialEngine) Run(limits RunLimits) (RunSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		return e.summary(0, StopReasonNone), ErrReentrantRun
	}
	defer e.running.Store(false)

	e.state.Store(int32(RunStateRunning))

	var processed uint64

	for {
		reason, err := e.step(limits, processed)
		if reason != StopReasonNone {
			e.endRun(reason)
			return e.summary(processed, reason), err
		}

		processed++
	}
}

// step processes one event under the pause lock. The lock is released even
// if the handler panics.
func (e *SerialEngine) step(limits RunLimits, processed uint64) (StopReason, error) {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if reason := e.stopReason(limits, processed); reason != StopReasonNone {
		return reason, nil
	}

	if err := e.processNextEvent(); err != nil {
		return StopReasonActionFailed, err
	}

	return StopReasonNone, nil
}

func (e *SerialEngine) stopReason(
	limits RunLimits,
	processed uint64,
) StopReason {
	if e.stopRequested.CompareAndSwap(true, false) {
		return StopReasonStoppedExplicitly
	}

	e.queueLock.Lock()
	next, ok := e.queue.PeekTime()
	e.queueLock.Unlock()

	if !ok {
		return StopReasonQueueEmpty
	}

	if maxEvents, set := limits.MaxEvents(); set && processed >= maxEvents {
		return StopReasonEventBudgetReached
	}

	if until, set := limits.Until(); set && next > until {
		return StopReasonHorizonReached
	}

	return StopReasonNone
}

func (e *SerialEngine) processNextEvent() error {
	e.queueLock.Lock()
	evt, ok := e.queue.PopMin()
	e.queueLock.Unlock()

	if !ok {
		return nil
	}

	e.writeNow(evt.Time)

	hookCtx := HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := evt.Handler.Handle(evt)
	if err != nil {
		return fmt.Errorf("event %d @ %.10f: %w", evt.Seq, evt.Time, err)
	}

	n := e.numEvents.Add(1)

	hookCtx.Pos = HookPosAfterEvent
	hookCtx.Detail = Progress{Now: evt.Time, NumEvents: n}
	e.InvokeHook(hookCtx)

	return nil
}

func (e *SerialEngine) endRun(reason StopReason) {
	if reason == StopReasonQueueEmpty {
		e.state.Store(int32(RunStateFinished))
		return
	}

	e.state.Store(int32(RunStateStopped))
}

func (e *SerialEngine) summary(processed uint64, reason StopReason) RunSummary {
	return RunSummary{
		Now:       e.readNow(),
		NumEvents: e.numEvents.Load(),
		Processed: processed,
		Pending:   e.NumPendingEvents(),
		Reason:    reason,
	}
}

// Pause prevents the SerialEngine to trigger more events. It must not be
// called from an event handler.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return e.readNow()
}

// NumEvents returns the number of events that have been processed.
func (e *SerialEngine) NumEvents() uint64 {
	return e.numEvents.Load()
}

// NumPendingEvents returns the number of events waiting to fire.
func (e *SerialEngine) NumPendingEvents() int {
	e.queueLock.Lock()
	defer e.queueLock.Unlock()

	return e.queue.Len()
}

// State returns the state of the run loop.
func (e *SerialEngine) State() RunState {
	return RunState(e.state.Load())
}

// RegisterSimulationEndHandler invokes all the registered simulation end
// handler.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.simulationEndHandlers = append(e.simulationEndHandlers, handler)
}

// Finished should be called after the simulation ends. This function
// calls all the registered SimulationEndHandler.
func (e *SerialEngine) Finished() {
	now := e.readNow()
	for _, h := range e.simulationEndHandlers {
		h.Handle(now)
	}
}

var _ Engine = (*SerialEngine)(nil)

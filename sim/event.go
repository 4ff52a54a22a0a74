package sim

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// An Event is something going to happen in the future.
//
// Events are records created by the engine when something is scheduled. They
// are delivered to the handler by value and must not be retained to mutate
// the engine; use the EventHandle returned at scheduling time to cancel.
type Event struct {
	// Time is when the event fires.
	Time VTimeInSec

	// Seq is assigned at insertion in strictly increasing order and breaks
	// ties between events with the same Time.
	Seq uint64

	// Handler is invoked when the event fires.
	Handler Handler

	// Payload carries user data to the handler. It can be nil.
	Payload any
}

// A Handler defines a domain for the events.
type Handler interface {
	Handle(evt Event) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(evt Event) error

// Handle calls f(evt).
func (f HandlerFunc) Handle(evt Event) error {
	return f(evt)
}

// EventHandle refers to a scheduled event. The zero value refers to no event.
//
// A handle stays valid until its event fires or is discarded as cancelled.
// After that the arena slot may be reused, and the generation stored in the
// handle no longer matches, so the handle silently becomes inert.
type EventHandle struct {
	index      uint32
	generation uint32
}

// IsZero returns true if the handle does not refer to any event.
func (h EventHandle) IsZero() bool {
	return h.generation == 0
}

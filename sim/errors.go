package sim

import "errors"

var (
	// ErrOutOfOrderSchedule is returned when an event is scheduled at a time
	// earlier than the current time.
	ErrOutOfOrderSchedule = errors.New("cannot schedule event in the past")

	// ErrNegativeDelay is returned when an event is scheduled with a negative
	// delay.
	ErrNegativeDelay = errors.New("negative delay disallowed")

	// ErrInvalidTime is returned when an event time is NaN or infinite.
	ErrInvalidTime = errors.New("event time must be a finite number")

	// ErrNilHandler is returned when an event is scheduled without a handler.
	ErrNilHandler = errors.New("event handler must not be nil")

	// ErrReentrantRun is returned when Run is called while the engine is
	// already running, for example from inside an event handler.
	ErrReentrantRun = errors.New("engine is already running")
)

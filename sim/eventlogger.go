package sim

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// Named is implemented by handlers that can tell their name.
type Named interface {
	Name() string
}

// EventLogger is an hook that prints the event information
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which will write in to the logger
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	fields := logrus.Fields{
		"time":    float64(evt.Time),
		"seq":     evt.Seq,
		"handler": HandlerName(evt.Handler),
	}

	if evt.Payload != nil {
		fields["payload"] = reflect.TypeOf(evt.Payload).String()
	}

	h.Logger.WithFields(fields).Trace("event")
}

// HandlerName returns the name of a named handler, or its type otherwise.
func HandlerName(handler Handler) string {
	if named, ok := handler.(Named); ok {
		return named.Name()
	}

	return reflect.TypeOf(handler).String()
}

var _ LogHook = (*EventLogger)(nil)

// Package tracing records the events fired by a simulation so that a run can
// be inspected after it finishes.
package tracing

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/sarchlab/desim/datarecording"
	"github.com/sarchlab/desim/sim"
)

// Table names used by the EventTracer.
const (
	EventTable = "desim_event"
	RunTable   = "desim_run"
)

const maxPayloadLen = 256

// EventRecord is a row of the event table.
type EventRecord struct {
	Seq     uint64
	Time    float64
	Handler string
	Payload string
}

// RunRecord is a row of the run table. One row is written per Run call.
type RunRecord struct {
	SimulationID string
	Now          float64
	NumEvents    uint64
	Processed    uint64
	Pending      int
	Reason       string
}

// EventTracer is a hook that stores every fired event into a DataRecorder.
type EventTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder

	startTime, endTime sim.VTimeInSec
	hasEndTime         bool

	isTracing  bool
	numTraced  uint64
	terminated bool
}

// NewEventTracer creates the trace tables in the recorder and returns a
// tracer that is tracing.
func NewEventTracer(recorder datarecording.DataRecorder) *EventTracer {
	recorder.CreateTable(EventTable, EventRecord{})
	recorder.CreateTable(RunTable, RunRecord{})

	return &EventTracer{
		backend:   recorder,
		isTracing: true,
	}
}

// SetTimeRange limits tracing to the events in [startTime, endTime].
func (t *EventTracer) SetTimeRange(startTime, endTime sim.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
	t.hasEndTime = true
}

// EnableTracing resumes recording events.
func (t *EventTracer) EnableTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isTracing = true
}

// DisableTracing stops recording events until EnableTracing is called.
func (t *EventTracer) DisableTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isTracing = false
}

// IsTracing tells if events are being recorded.
func (t *EventTracer) IsTracing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.isTracing
}

// NumTraced returns the number of events recorded so far.
func (t *EventTracer) NumTraced() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.numTraced
}

// Func records the event before its handler runs.
func (t *EventTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(sim.Event)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isTracing || t.terminated || !t.inRange(evt.Time) {
		return
	}

	t.backend.InsertData(EventTable, EventRecord{
		Seq:     evt.Seq,
		Time:    float64(evt.Time),
		Handler: sim.HandlerName(evt.Handler),
		Payload: payloadString(evt.Payload),
	})
	t.numTraced++
}

func (t *EventTracer) inRange(time sim.VTimeInSec) bool {
	if time < t.startTime {
		return false
	}

	if t.hasEndTime && time > t.endTime {
		return false
	}

	return true
}

// RecordSummary writes the outcome of a Run call.
func (t *EventTracer) RecordSummary(simID string, summary sim.RunSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.backend.InsertData(RunTable, RunRecord{
		SimulationID: simID,
		Now:          float64(summary.Now),
		NumEvents:    summary.NumEvents,
		Processed:    summary.Processed,
		Pending:      summary.Pending,
		Reason:       string(summary.Reason),
	})
	t.backend.Flush()
}

// Terminate flushes the buffered records. Later events are ignored.
func (t *EventTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true
	t.backend.Flush()
}

func payloadString(payload any) string {
	if payload == nil {
		return ""
	}

	s := fmt.Sprintf("%v", payload)
	if len(s) <= maxPayloadLen {
		return s
	}

	s = s[:maxPayloadLen]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}

	return s
}

var _ sim.Hook = (*EventTracer)(nil)

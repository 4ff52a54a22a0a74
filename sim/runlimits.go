package sim

// StopReason tells why a run ended.
type StopReason string

// The reasons a run can end.
const (
	StopReasonNone               StopReason = ""
	StopReasonQueueEmpty         StopReason = "queue_empty"
	StopReasonHorizonReached     StopReason = "horizon_reached"
	StopReasonEventBudgetReached StopReason = "event_budget_reached"
	StopReasonStoppedExplicitly  StopReason = "stopped_explicitly"
	StopReasonActionFailed       StopReason = "action_failed"
)

// RunState is the state of the run loop.
type RunState int

// The states of the run loop.
const (
	RunStateNotStarted RunState = iota
	RunStateRunning
	RunStateStopped
	RunStateFinished
)

func (s RunState) String() string {
	switch s {
	case RunStateNotStarted:
		return "not_started"
	case RunStateRunning:
		return "running"
	case RunStateStopped:
		return "stopped"
	case RunStateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// RunLimits bounds a single call to Run. The zero value has no limits.
type RunLimits struct {
	until        VTimeInSec
	hasUntil     bool
	maxEvents    uint64
	hasMaxEvents bool
}

// NoLimits returns limits that let the engine run until the queue drains.
func NoLimits() RunLimits {
	return RunLimits{}
}

// WithUntil sets the time horizon. Events scheduled strictly after the
// horizon are not processed.
func (l RunLimits) WithUntil(t VTimeInSec) RunLimits {
	l.until = t
	l.hasUntil = true

	return l
}

// WithMaxEvents sets the number of events a single Run call may process.
func (l RunLimits) WithMaxEvents(n uint64) RunLimits {
	l.maxEvents = n
	l.hasMaxEvents = true

	return l
}

// Until returns the horizon and whether it is set.
func (l RunLimits) Until() (VTimeInSec, bool) {
	return l.until, l.hasUntil
}

// MaxEvents returns the event budget and whether it is set.
func (l RunLimits) MaxEvents() (uint64, bool) {
	return l.maxEvents, l.hasMaxEvents
}

// RunSummary is the state of the engine when Run returns.
type RunSummary struct {
	// Now is the time of the last processed event.
	Now VTimeInSec `json:"now"`

	// NumEvents is the number of events processed since the engine was
	// created.
	NumEvents uint64 `json:"num_events"`

	// Processed is the number of events processed by this Run call.
	Processed uint64 `json:"processed"`

	// Pending is the number of events still waiting to fire.
	Pending int `json:"pending"`

	Reason StopReason `json:"reason"`
}

// Progress is delivered as the hook detail after each event.
type Progress struct {
	Now       VTimeInSec
	NumEvents uint64
}

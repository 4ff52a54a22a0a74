package sim

import (
	"container/heap"
)

// eventSlot is an arena cell holding one event. The generation increases
// every time the slot is recycled, which invalidates old handles.
type eventSlot struct {
	event      Event
	generation uint32
	live       bool
	cancelled  bool
}

// EventQueue is a queue of events ordered by (time, sequence number).
//
// Events are stored in an arena and the heap only orders arena indices.
// Cancellation is lazy: a cancelled event stays in the heap and is dropped
// when it reaches the front.
type EventQueue struct {
	slots   []eventSlot
	free    []uint32
	order   eventHeap
	nextSeq uint64
	pending int
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() *EventQueue {
	q := new(EventQueue)
	q.order.slots = &q.slots
	heap.Init(&q.order)

	return q
}

// Insert adds an event to the queue and returns a handle to it.
func (q *EventQueue) Insert(
	t VTimeInSec,
	handler Handler,
	payload any,
) EventHandle {
	q.nextSeq++

	index := q.allocSlot()
	slot := &q.slots[index]
	slot.event = Event{
		Time:    t,
		Seq:     q.nextSeq,
		Handler: handler,
		Payload: payload,
	}
	slot.live = true
	slot.cancelled = false

	heap.Push(&q.order, index)
	q.pending++

	return EventHandle{index: index, generation: slot.generation}
}

func (q *EventQueue) allocSlot() uint32 {
	if n := len(q.free); n > 0 {
		index := q.free[n-1]
		q.free = q.free[:n-1]

		return index
	}

	q.slots = append(q.slots, eventSlot{generation: 1})

	return uint32(len(q.slots) - 1)
}

func (q *EventQueue) releaseSlot(index uint32) {
	slot := &q.slots[index]
	slot.event = Event{}
	slot.live = false
	slot.cancelled = false
	slot.generation++

	if slot.generation == 0 {
		slot.generation = 1
	}

	q.free = append(q.free, index)
}

func (q *EventQueue) lookup(h EventHandle) *eventSlot {
	if h.IsZero() || int(h.index) >= len(q.slots) {
		return nil
	}

	slot := &q.slots[h.index]
	if slot.generation != h.generation || !slot.live {
		return nil
	}

	return slot
}

// Cancel marks the referred event as cancelled. Cancelling a fired, already
// cancelled, or zero handle does nothing.
func (q *EventQueue) Cancel(h EventHandle) {
	slot := q.lookup(h)
	if slot == nil || slot.cancelled {
		return
	}

	slot.cancelled = true
	q.pending--
}

// IsPending returns true if the handle refers to an event that has neither
// fired nor been cancelled.
func (q *EventQueue) IsPending(h EventHandle) bool {
	slot := q.lookup(h)
	return slot != nil && !slot.cancelled
}

// PopMin removes and returns the earliest event that is not cancelled. The
// second return value is false if there is no such event.
func (q *EventQueue) PopMin() (Event, bool) {
	q.discardCancelledFront()

	if q.order.Len() == 0 {
		return Event{}, false
	}

	index := heap.Pop(&q.order).(uint32)
	evt := q.slots[index].event
	q.releaseSlot(index)
	q.pending--

	return evt, true
}

// PeekTime returns the time of the earliest event that is not cancelled.
func (q *EventQueue) PeekTime() (VTimeInSec, bool) {
	q.discardCancelledFront()

	if q.order.Len() == 0 {
		return 0, false
	}

	return q.slots[q.order.indices[0]].event.Time, true
}

func (q *EventQueue) discardCancelledFront() {
	for q.order.Len() > 0 {
		front := q.order.indices[0]
		if !q.slots[front].cancelled {
			return
		}

		heap.Pop(&q.order)
		q.releaseSlot(front)
	}
}

// Len returns the number of events that are waiting to fire.
func (q *EventQueue) Len() int {
	return q.pending
}

type eventHeap struct {
	slots   *[]eventSlot
	indices []uint32
}

// Len returns the length of the event queue
func (h eventHeap) Len() int {
	return len(h.indices)
}

// Less determines the order between two events. Events are ordered by time
// first and by insertion sequence for events that happen at the same time.
func (h eventHeap) Less(i, j int) bool {
	slots := *h.slots
	a := &slots[h.indices[i]].event
	b := &slots[h.indices[j]].event

	if a.Time != b.Time {
		return a.Time < b.Time
	}

	return a.Seq < b.Seq
}

// Swap changes the position of two events in the event queue
func (h eventHeap) Swap(i, j int) {
	h.indices[i], h.indices[j] = h.indices[j], h.indices[i]
}

// Push adds an event into the event queue
func (h *eventHeap) Push(x any) {
	h.indices = append(h.indices, x.(uint32))
}

// Pop removes and returns the next event to happen
func (h *eventHeap) Pop() any {
	old := h.indices
	n := len(old)
	index := old[n-1]
	h.indices = old[0 : n-1]

	return index
}

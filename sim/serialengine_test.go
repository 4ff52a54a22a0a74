package sim

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type recordingHandler struct {
	engine *SerialEngine
	calls  []string
	onCall map[string]func()
}

func newRecordingHandler(engine *SerialEngine) *recordingHandler {
	return &recordingHandler{
		engine: engine,
		onCall: make(map[string]func()),
	}
}

func (h *recordingHandler) Handle(evt Event) error {
	label := evt.Payload.(string)
	h.calls = append(h.calls, label)

	if f, ok := h.onCall[label]; ok {
		f()
	}

	return nil
}

func (h *recordingHandler) at(t VTimeInSec, label string) EventHandle {
	handle, err := h.engine.ScheduleAt(t, h, label)
	Expect(err).NotTo(HaveOccurred())

	return handle
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
		handler  *recordingHandler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
		handler = newRecordingHandler(engine)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule events", func() {
		handler.onCall["evt2"] = func() {
			handler.at(3, "evt3")
			handler.at(5, "evt4")
		}

		handler.at(4, "evt1")
		handler.at(2, "evt2")

		summary, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"evt2", "evt3", "evt1", "evt4"}))
		Expect(summary.Reason).To(Equal(StopReasonQueueEmpty))
		Expect(summary.Now).To(Equal(VTimeInSec(5)))
		Expect(summary.NumEvents).To(Equal(uint64(4)))
		Expect(engine.State()).To(Equal(RunStateFinished))
	})

	It("should fire same-time events in insertion order", func() {
		handler.onCall["a"] = func() {
			handler.at(1, "d")
		}

		handler.at(1, "a")
		handler.at(1, "b")
		handler.at(1, "c")

		_, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"a", "b", "c", "d"}))
	})

	It("should process the 5, 3, 3 scenario", func() {
		handler.at(5, "t5")
		handler.at(3, "t3-first")
		handler.at(3, "t3-second")

		summary, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal(
			[]string{"t3-first", "t3-second", "t5"}))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(5)))
		Expect(summary.Reason).To(Equal(StopReasonQueueEmpty))
	})

	It("should not fire cancelled events", func() {
		h := handler.at(2, "cancelled")
		handler.onCall["first"] = func() {
			engine.Cancel(h)
		}
		handler.at(1, "first")
		handler.at(3, "last")

		_, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"first", "last"}))
	})

	It("should finish without invoking anything if all events are cancelled", func() {
		h := handler.at(2, "cancelled")
		engine.Cancel(h)
		engine.Cancel(h)

		summary, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(BeEmpty())
		Expect(summary.Reason).To(Equal(StopReasonQueueEmpty))
		Expect(summary.NumEvents).To(BeZero())
	})

	It("should reject events in the past without touching the queue", func() {
		handler.at(5, "five")
		handler.onCall["five"] = func() {
			_, err := engine.ScheduleAt(4, handler, "past")
			Expect(err).To(MatchError(ErrOutOfOrderSchedule))
			Expect(engine.NumPendingEvents()).To(Equal(0))
		}

		_, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"five"}))
	})

	It("should accept events at the current time", func() {
		handler.onCall["five"] = func() {
			handler.at(5, "again")
		}
		handler.at(5, "five")

		_, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"five", "again"}))
	})

	It("should reject negative delays", func() {
		_, err := engine.ScheduleAfter(-1, handler, "x")

		Expect(err).To(MatchError(ErrNegativeDelay))
		Expect(engine.NumPendingEvents()).To(Equal(0))
	})

	It("should reject invalid times and nil handlers", func() {
		_, err := engine.ScheduleAfter(VTimeInSec(math.Inf(1)), handler, "x")
		Expect(err).To(MatchError(ErrInvalidTime))

		_, err = engine.ScheduleAt(1, nil, nil)
		Expect(err).To(MatchError(ErrNilHandler))
	})

	It("should schedule relative to the current time", func() {
		handler.onCall["first"] = func() {
			_, err := engine.ScheduleAfter(2.5, handler, "later")
			Expect(err).NotTo(HaveOccurred())
		}
		handler.at(1, "first")

		_, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(3.5)))
	})

	It("should stop at the horizon", func() {
		handler.at(1, "a")
		handler.at(2, "b")
		handler.at(3, "c")

		summary, err := engine.Run(NoLimits().WithUntil(2))

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"a", "b"}))
		Expect(summary.Reason).To(Equal(StopReasonHorizonReached))
		Expect(summary.Now).To(Equal(VTimeInSec(2)))
		Expect(summary.Pending).To(Equal(1))
		Expect(engine.State()).To(Equal(RunStateStopped))

		summary, err = engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"a", "b", "c"}))
		Expect(summary.Reason).To(Equal(StopReasonQueueEmpty))
	})

	It("should stop when the event budget is used", func() {
		handler.at(1, "a")
		handler.at(2, "b")
		handler.at(3, "c")

		summary, err := engine.Run(NoLimits().WithMaxEvents(2))

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"a", "b"}))
		Expect(summary.Reason).To(Equal(StopReasonEventBudgetReached))
		Expect(summary.Processed).To(Equal(uint64(2)))
	})

	It("should stop when asked from a handler", func() {
		handler.onCall["a"] = func() {
			engine.Stop()
		}
		handler.at(1, "a")
		handler.at(1, "b")

		summary, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(handler.calls).To(Equal([]string{"a"}))
		Expect(summary.Reason).To(Equal(StopReasonStoppedExplicitly))
		Expect(summary.Now).To(Equal(VTimeInSec(1)))
	})

	It("should propagate handler errors", func() {
		boom := errors.New("boom")
		failing := NewMockHandler(mockCtrl)
		failing.EXPECT().Handle(gomock.Any()).Return(boom)

		_, err := engine.ScheduleAt(2, failing, nil)
		Expect(err).NotTo(HaveOccurred())
		handler.at(3, "never")

		summary, err := engine.Run(NoLimits())

		Expect(err).To(MatchError(boom))
		Expect(summary.Reason).To(Equal(StopReasonActionFailed))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(2)))
		Expect(engine.NumPendingEvents()).To(Equal(1))
		Expect(handler.calls).To(BeEmpty())
	})

	It("should run again after a handler panics", func() {
		handler.onCall["panic"] = func() { panic("handler failed") }
		handler.at(1, "panic")
		handler.at(2, "after")

		Expect(func() { _, _ = engine.Run(NoLimits()) }).To(Panic())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(1)))

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()

			engine.Pause()
			engine.Continue()

			summary, err := engine.Run(NoLimits())
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Reason).To(Equal(StopReasonQueueEmpty))
			close(done)
		}()

		Eventually(done).Should(BeClosed())
		Expect(handler.calls).To(Equal([]string{"panic", "after"}))
	})

	It("should not allow running from a handler", func() {
		handler.onCall["a"] = func() {
			_, err := engine.Run(NoLimits())
			Expect(err).To(MatchError(ErrReentrantRun))
		}
		handler.at(1, "a")

		_, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
	})

	It("should invoke hooks around each event", func() {
		hook := NewMockHook(mockCtrl)
		engine.AcceptHook(hook)

		before := hook.EXPECT().
			Func(gomock.Any()).
			Do(func(ctx HookCtx) {
				Expect(ctx.Pos).To(Equal(HookPosBeforeEvent))
				Expect(ctx.Item.(Event).Time).To(Equal(VTimeInSec(7)))
			})
		hook.EXPECT().
			Func(gomock.Any()).
			Do(func(ctx HookCtx) {
				Expect(ctx.Pos).To(Equal(HookPosAfterEvent))
				Expect(ctx.Detail).To(Equal(Progress{Now: 7, NumEvents: 1}))
			}).
			After(before)

		handler.at(7, "a")

		_, err := engine.Run(NoLimits())

		Expect(err).NotTo(HaveOccurred())
	})

	It("should call simulation end handlers", func() {
		endHandler := NewMockSimulationEndHandler(mockCtrl)
		endHandler.EXPECT().Handle(VTimeInSec(4))
		engine.RegisterSimulationEndHandler(endHandler)

		handler.at(4, "a")
		_, err := engine.Run(NoLimits())
		Expect(err).NotTo(HaveOccurred())

		engine.Finished()
	})

	It("should wait while paused", func() {
		handler.at(1, "a")
		engine.Pause()

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			_, err := engine.Run(NoLimits())
			Expect(err).NotTo(HaveOccurred())
			close(done)
		}()

		Consistently(done).ShouldNot(BeClosed())

		engine.Continue()

		Eventually(done).Should(BeClosed())
		Expect(engine.NumEvents()).To(Equal(uint64(1)))
	})
})

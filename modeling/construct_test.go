package modeling

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/desim/sim"
	"github.com/sarchlab/desim/simulation"
)

type rateModel struct {
	Model

	Rate float64 `param:"rate"`
}

type defaultsModel struct {
	Model

	Capacity int           `param:"capacity" default:"-1"`
	Seed     uint64        `param:"seed" default:"1"`
	Label    string        `param:"label" default:"queue"`
	Verbose  bool          `param:"verbose" default:"false"`
	Timeout  time.Duration `param:"timeout" default:"1s"`
	Ignored  int           `param:"-"`
}

type twoParamModel struct {
	Model

	Arrival float64 `param:"arrival_mean"`
	Service float64 `param:"service_mean"`
}

type hiddenParamModel struct {
	Model

	rate float64 `param:"rate"` //nolint:unused
}

func buildSim(params map[string]any) *simulation.Simulation {
	s, err := simulation.MakeBuilder().WithParams(params).Build()
	Expect(err).NotTo(HaveOccurred())

	DeferCleanup(func() {
		Expect(s.Terminate()).To(Succeed())
	})

	return s
}

var _ = Describe("Construct", func() {
	It("should fail when a parameter is missing", func() {
		s := buildSim(nil)

		m, err := Construct[rateModel](s, "Model", nil, nil)

		Expect(err).To(MatchError(ErrMissingParameter))
		Expect(m).To(BeNil())
		Expect(s.NumModules()).To(BeZero())
	})

	It("should inject the parameter value", func() {
		s := buildSim(map[string]any{"rate": 2.5})

		m, err := Construct[rateModel](s, "Model", nil, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(m.Rate).To(Equal(2.5))
		Expect(m.Sim()).To(BeIdenticalTo(s))
	})

	It("should list every missing parameter", func() {
		s := buildSim(nil)

		_, err := Construct[twoParamModel](s, "Queueing", nil, nil)

		var missingErr *MissingParameterError
		Expect(errors.As(err, &missingErr)).To(BeTrue())
		Expect(missingErr.Model).To(Equal("Queueing"))
		Expect(missingErr.Names).To(Equal(
			[]string{"arrival_mean", "service_mean"}))
	})

	It("should use defaults for absent parameters", func() {
		s := buildSim(map[string]any{"seed": "42"})

		m, err := Construct[defaultsModel](s, "Model", nil, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(m.Capacity).To(Equal(-1))
		Expect(m.Seed).To(Equal(uint64(42)))
		Expect(m.Label).To(Equal("queue"))
		Expect(m.Verbose).To(BeFalse())
		Expect(m.Timeout).To(Equal(time.Second))
		Expect(m.Ignored).To(BeZero())
	})

	It("should reject values that cannot be converted", func() {
		s := buildSim(map[string]any{"rate": "fast"})

		_, err := Construct[rateModel](s, "Model", nil, nil)

		Expect(err).To(MatchError(ErrInvalidParameter))
	})

	It("should reject parameters on unexported fields", func() {
		s := buildSim(map[string]any{"rate": 1.0})

		_, err := Construct[hiddenParamModel](s, "Model", nil, nil)

		Expect(err).To(MatchError(ErrInvalidParameter))
	})

	It("should require a live simulation", func() {
		_, err := Construct[rateModel](nil, "Model", nil, nil)
		Expect(err).To(MatchError(ErrNoSimulation))

		s := buildSim(map[string]any{"rate": 1.0})
		Expect(s.Terminate()).To(Succeed())

		_, err = Construct[rateModel](s, "Model", nil, nil)
		Expect(err).To(MatchError(simulation.ErrSimulationReleased))
	})

	It("should reject invalid names", func() {
		s := buildSim(map[string]any{"rate": 1.0})

		_, err := Construct[rateModel](s, "", nil, nil)
		Expect(err).To(MatchError(ErrInvalidName))

		_, err = Construct[rateModel](s, "a.b", nil, nil)
		Expect(err).To(MatchError(ErrInvalidName))
	})

	It("should build a hierarchy", func() {
		s := buildSim(map[string]any{"rate": 1.0})

		var child *rateModel

		root, err := Construct[rateModel](s, "System", nil,
			func(m *rateModel) error {
				var err error
				child, err = Construct[rateModel](s, "Server", m, nil)

				return err
			})

		Expect(err).NotTo(HaveOccurred())
		Expect(child.Name()).To(Equal("System.Server"))
		Expect(child.LocalName()).To(Equal("Server"))
		Expect(child.Parent()).To(BeIdenticalTo(root))
		Expect(root.Parent()).To(BeNil())

		found, ok := root.Children().Get("Server")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(child))

		Expect(s.NumModules()).To(Equal(2))
		registered, ok := s.GetModuleByName("System.Server")
		Expect(ok).To(BeTrue())
		Expect(registered).To(BeIdenticalTo(child))
	})

	It("should reject duplicated names", func() {
		s := buildSim(map[string]any{"rate": 1.0})

		_, err := Construct[rateModel](s, "Model", nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = Construct[rateModel](s, "Model", nil, nil)
		Expect(err).To(MatchError(simulation.ErrDuplicateModule))
	})

	It("should not run the setup of a duplicated name", func() {
		s := buildSim(map[string]any{"rate": 1.0})

		first, err := Construct[rateModel](s, "Model", nil, nil)
		Expect(err).NotTo(HaveOccurred())

		setupRan := false
		_, err = Construct[rateModel](s, "Model", nil,
			func(m *rateModel) error {
				setupRan = true
				_, err := m.ScheduleAt(1, sim.HandlerFunc(func(sim.Event) error {
					return nil
				}), nil)

				return err
			})

		Expect(err).To(MatchError(simulation.ErrDuplicateModule))
		Expect(setupRan).To(BeFalse())
		Expect(s.GetEngine().NumPendingEvents()).To(BeZero())

		registered, ok := s.GetModuleByName("Model")
		Expect(ok).To(BeTrue())
		Expect(registered).To(BeIdenticalTo(first))
	})

	It("should unregister the children of a failing parent", func() {
		s := buildSim(map[string]any{"rate": 1.0})
		boom := errors.New("boom")

		_, err := Construct[rateModel](s, "System", nil,
			func(m *rateModel) error {
				_, err := Construct[rateModel](s, "Server", m, nil)
				Expect(err).NotTo(HaveOccurred())
				_, err = Construct[rateModel](s, "Queue", m, nil)
				Expect(err).NotTo(HaveOccurred())

				return boom
			})

		Expect(err).To(MatchError(boom))
		Expect(s.NumModules()).To(BeZero())

		_, err = Construct[rateModel](s, "System", nil, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should keep other models whose names share a prefix", func() {
		s := buildSim(map[string]any{"rate": 1.0})

		_, err := Construct[rateModel](s, "SystemB", nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = Construct[rateModel](s, "System", nil,
			func(*rateModel) error { return errors.New("boom") })
		Expect(err).To(HaveOccurred())

		Expect(s.NumModules()).To(Equal(1))
		_, ok := s.GetModuleByName("SystemB")
		Expect(ok).To(BeTrue())
	})

	It("should keep events scheduled by a failing setup", func() {
		s := buildSim(map[string]any{"rate": 1.0})
		boom := errors.New("boom")

		_, err := Construct[rateModel](s, "Model", nil,
			func(m *rateModel) error {
				_, err := m.ScheduleAt(1, sim.HandlerFunc(func(sim.Event) error {
					return nil
				}), nil)
				Expect(err).NotTo(HaveOccurred())

				return boom
			})

		Expect(err).To(MatchError(boom))
		Expect(s.NumModules()).To(BeZero())
		Expect(s.GetEngine().NumPendingEvents()).To(Equal(1))
	})

	It("should let constructors schedule events", func() {
		s := buildSim(map[string]any{"rate": 1.0})
		var fired []sim.VTimeInSec

		_, err := Construct[rateModel](s, "Model", nil,
			func(m *rateModel) error {
				handler := sim.HandlerFunc(func(evt sim.Event) error {
					fired = append(fired, m.Now())
					return nil
				})

				for _, t := range []sim.VTimeInSec{5, 3, 3} {
					if _, err := m.ScheduleAt(t, handler, nil); err != nil {
						return err
					}
				}

				return nil
			})
		Expect(err).NotTo(HaveOccurred())

		summary, err := s.Run(sim.NoLimits())

		Expect(err).NotTo(HaveOccurred())
		Expect(fired).To(Equal([]sim.VTimeInSec{3, 3, 5}))
		Expect(summary.Reason).To(Equal(sim.StopReasonQueueEmpty))
	})
})

var _ = Describe("ResolveParams", func() {
	It("should fill a plain struct", func() {
		cfg := struct {
			Rate  float64 `param:"rate"`
			Count int     `param:"count" default:"3"`
		}{}

		err := ResolveParams(
			simulation.NewParams(map[string]any{"rate": "2.5"}), &cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Rate).To(Equal(2.5))
		Expect(cfg.Count).To(Equal(3))
	})

	It("should require a pointer to a struct", func() {
		err := ResolveParams(simulation.NewParams(nil), 3)

		Expect(err).To(MatchError(ErrInvalidParameter))
	})
})

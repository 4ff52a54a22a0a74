package simulation

import (
	"errors"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/desim/datarecording"
	"github.com/sarchlab/desim/monitoring"
	"github.com/sarchlab/desim/sim"
	"github.com/sarchlab/desim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	params    map[string]any
	logger    logrus.FieldLogger
	logEvents bool

	tracingOn    bool
	tracePath    string
	dataRecorder datarecording.DataRecorder

	monitorOn   bool
	monitorPort int
	openBrowser bool

	hooks       []sim.Hook
	endHandlers []sim.SimulationEndHandler
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		logger: logrus.StandardLogger(),
	}
}

// WithParams adds the given values to the parameters of the simulation.
func (b Builder) WithParams(params map[string]any) Builder {
	merged := make(map[string]any, len(b.params)+len(params))
	for k, v := range b.params {
		merged[k] = v
	}

	for k, v := range params {
		merged[k] = v
	}

	b.params = merged

	return b
}

// WithParam sets a single parameter.
func (b Builder) WithParam(name string, value any) Builder {
	return b.WithParams(map[string]any{name: value})
}

// WithLogger sets the logger of the simulation.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithEventLogging logs every event at the trace level.
func (b Builder) WithEventLogging() Builder {
	b.logEvents = true
	return b
}

// WithEventTracing records the fired events into <path>.sqlite3. An empty
// path uses a name derived from the simulation ID.
func (b Builder) WithEventTracing(path string) Builder {
	b.tracingOn = true
	b.tracePath = path

	return b
}

// WithDataRecorder records the fired events into the given recorder. The
// simulation closes the recorder when it terminates.
func (b Builder) WithDataRecorder(recorder datarecording.DataRecorder) Builder {
	b.tracingOn = true
	b.dataRecorder = recorder

	return b
}

// WithMonitoring starts a monitoring server when the simulation is built.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring page in a browser.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithHook registers a hook on the engine.
func (b Builder) WithHook(hook sim.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// WithSimulationEndHandler registers a handler called on termination.
func (b Builder) WithSimulationEndHandler(
	handler sim.SimulationEndHandler,
) Builder {
	b.endHandlers = append(
		b.endHandlers[:len(b.endHandlers):len(b.endHandlers)], handler)

	return b
}

func (b Builder) parametersMustBeValid() error {
	if !b.monitorOn && b.monitorPort != 0 {
		return errors.New(
			"monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.openBrowser {
		return errors.New(
			"browser cannot be opened when monitoring is disabled")
	}

	return nil
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	engine := sim.NewSerialEngine()

	s := &Simulation{
		id:          xid.New().String(),
		engine:      engine,
		params:      NewParams(b.params),
		logger:      b.logger,
		moduleIndex: make(map[string]int),
	}

	if b.logEvents {
		engine.AcceptHook(sim.NewEventLogger(b.logger))
	}

	for _, h := range b.hooks {
		engine.AcceptHook(h)
	}

	for _, h := range b.endHandlers {
		engine.RegisterSimulationEndHandler(h)
	}

	if err := b.buildTracer(s); err != nil {
		return nil, err
	}

	if b.monitorOn {
		if err := b.buildMonitor(s); err != nil {
			if s.dataRecorder != nil {
				_ = s.dataRecorder.Close()
			}

			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"sim_id": s.id,
		"params": s.params.Len(),
	}).Debug("simulation built")

	return s, nil
}

func (b Builder) buildTracer(s *Simulation) error {
	if !b.tracingOn {
		return nil
	}

	recorder := b.dataRecorder
	if recorder == nil {
		path := b.tracePath
		if path == "" {
			path = "desim_trace_" + s.id
		}

		var err error

		recorder, err = datarecording.New(path)
		if err != nil {
			return err
		}
	}

	s.dataRecorder = recorder
	s.tracer = tracing.NewEventTracer(recorder)
	s.engine.AcceptHook(s.tracer)

	return nil
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor().
		WithLogger(b.logger).
		WithPortNumber(b.monitorPort).
		WithBrowser(b.openBrowser)
	s.monitor.RegisterEngine(s.engine)
	s.monitor.TrackEvents(0)
	s.engine.AcceptHook(s.monitor)

	return s.monitor.StartServer()
}

// Package simulation ties an engine, its parameters, and the optional
// recording and monitoring services into a single simulation.
package simulation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/desim/datarecording"
	"github.com/sarchlab/desim/monitoring"
	"github.com/sarchlab/desim/sim"
	"github.com/sarchlab/desim/tracing"
)

// A Module is an entity that lives in a simulation.
type Module interface {
	Name() string
}

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id     string
	engine sim.Engine
	params Params
	logger logrus.FieldLogger

	dataRecorder datarecording.DataRecorder
	tracer       *tracing.EventTracer
	monitor      *monitoring.Monitor

	modulesLock sync.RWMutex
	modules     []Module
	moduleIndex map[string]int

	released bool
}

// ID returns the unique identifier of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// Params returns the parameters shared by all the modules.
func (s *Simulation) Params() Params {
	return s.params
}

// Logger returns the logger of the simulation.
func (s *Simulation) Logger() logrus.FieldLogger {
	return s.logger
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// if the simulation is not recording.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetTracer returns the event tracer. It is nil if tracing is disabled.
func (s *Simulation) GetTracer() *tracing.EventTracer {
	return s.tracer
}

// GetMonitor returns the monitor used in the simulation. It is nil if
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// Now returns the current simulated time.
func (s *Simulation) Now() sim.VTimeInSec {
	return s.engine.CurrentTime()
}

// CurrentTime returns the current simulated time.
func (s *Simulation) CurrentTime() sim.VTimeInSec {
	return s.engine.CurrentTime()
}

// IsReleased tells if the simulation has been terminated.
func (s *Simulation) IsReleased() bool {
	s.modulesLock.RLock()
	defer s.modulesLock.RUnlock()

	return s.released
}

// ScheduleAt registers an event that fires at an absolute time.
func (s *Simulation) ScheduleAt(
	t sim.VTimeInSec,
	handler sim.Handler,
	payload any,
) (sim.EventHandle, error) {
	if s.IsReleased() {
		return sim.EventHandle{}, ErrSimulationReleased
	}

	return s.engine.ScheduleAt(t, handler, payload)
}

// ScheduleAfter registers an event that fires after a delay.
func (s *Simulation) ScheduleAfter(
	delay sim.VTimeInSec,
	handler sim.Handler,
	payload any,
) (sim.EventHandle, error) {
	if s.IsReleased() {
		return sim.EventHandle{}, ErrSimulationReleased
	}

	return s.engine.ScheduleAfter(delay, handler, payload)
}

// Cancel prevents a scheduled event from firing.
func (s *Simulation) Cancel(h sim.EventHandle) {
	s.engine.Cancel(h)
}

// IsPending tells if the event behind a handle may still fire.
func (s *Simulation) IsPending(h sim.EventHandle) bool {
	type pendingTeller interface {
		IsPending(h sim.EventHandle) bool
	}

	if e, ok := s.engine.(pendingTeller); ok {
		return e.IsPending(h)
	}

	return false
}

// Stop asks the run loop to return before the next event.
func (s *Simulation) Stop() {
	s.engine.Stop()
}

// RegisterModule adds a module to the live-module set.
func (s *Simulation) RegisterModule(m Module) error {
	s.modulesLock.Lock()
	defer s.modulesLock.Unlock()

	if s.released {
		return ErrSimulationReleased
	}

	name := m.Name()
	if _, found := s.moduleIndex[name]; found {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}

	s.modules = append(s.modules, m)
	s.moduleIndex[name] = len(s.modules) - 1

	if s.monitor != nil {
		s.monitor.RegisterModule(m)
	}

	s.logger.WithField("module", name).Debug("module registered")

	return nil
}

// UnregisterModule removes a module from the live-module set. It returns
// false if no module has the name.
func (s *Simulation) UnregisterModule(name string) bool {
	s.modulesLock.Lock()
	defer s.modulesLock.Unlock()

	idx, found := s.moduleIndex[name]
	if !found {
		return false
	}

	s.modules = append(s.modules[:idx], s.modules[idx+1:]...)
	delete(s.moduleIndex, name)

	for i := idx; i < len(s.modules); i++ {
		s.moduleIndex[s.modules[i].Name()] = i
	}

	if s.monitor != nil {
		s.monitor.UnregisterModule(name)
	}

	return true
}

// Modules returns the live modules in registration order.
func (s *Simulation) Modules() []Module {
	s.modulesLock.RLock()
	defer s.modulesLock.RUnlock()

	modules := make([]Module, len(s.modules))
	copy(modules, s.modules)

	return modules
}

// GetModuleByName returns the module with the given name.
func (s *Simulation) GetModuleByName(name string) (Module, bool) {
	s.modulesLock.RLock()
	defer s.modulesLock.RUnlock()

	idx, found := s.moduleIndex[name]
	if !found {
		return nil, false
	}

	return s.modules[idx], true
}

// NumModules returns the number of live modules.
func (s *Simulation) NumModules() int {
	s.modulesLock.RLock()
	defer s.modulesLock.RUnlock()

	return len(s.modules)
}

// Run drives the engine until a stop condition is met. The outcome is
// written to the tracer if the simulation is tracing.
func (s *Simulation) Run(limits sim.RunLimits) (sim.RunSummary, error) {
	if s.IsReleased() {
		return sim.RunSummary{}, ErrSimulationReleased
	}

	s.logger.WithFields(logrus.Fields{
		"sim_id":  s.id,
		"now":     float64(s.Now()),
		"pending": s.engine.NumPendingEvents(),
	}).Debug("run started")

	summary, err := s.engine.Run(limits)

	if s.tracer != nil && !errors.Is(err, sim.ErrReentrantRun) {
		s.tracer.RecordSummary(s.id, summary)
	}

	entry := s.logger.WithFields(logrus.Fields{
		"sim_id":     s.id,
		"now":        float64(summary.Now),
		"num_events": summary.NumEvents,
		"processed":  summary.Processed,
		"pending":    summary.Pending,
		"reason":     string(summary.Reason),
	})

	if err != nil {
		entry.WithError(err).Error("run failed")
		return summary, err
	}

	entry.Info("run finished")

	return summary, nil
}

// Terminate ends the simulation. The end handlers are invoked, the recorder
// is flushed and closed, and the monitor stops serving. Later scheduling,
// running, and module registration fail with ErrSimulationReleased.
// Terminating twice has no effect.
func (s *Simulation) Terminate() error {
	s.modulesLock.Lock()
	if s.released {
		s.modulesLock.Unlock()
		return nil
	}

	s.released = true
	s.modules = nil
	s.moduleIndex = make(map[string]int)
	s.modulesLock.Unlock()

	s.engine.Finished()

	var errs []error

	if s.tracer != nil {
		s.tracer.Terminate()
	}

	if s.monitor != nil {
		errs = append(errs, s.monitor.StopServer())
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	s.logger.WithField("sim_id", s.id).Debug("simulation terminated")

	return errors.Join(errs...)
}

var _ sim.EventScheduler = (*Simulation)(nil)

// Package modeling provides the base type of user models and the lifecycle
// that injects the simulation and resolves declared parameters.
package modeling

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/desim/sim"
	"github.com/sarchlab/desim/simulation"
)

// A Module is a model that lives in a simulation. It is implemented by
// embedding Model.
type Module interface {
	simulation.Module

	LocalName() string
	Sim() *simulation.Simulation
	Parent() Module
	Children() *Children
	Connections() *Connections

	attach(s *simulation.Simulation, name, localName string, parent, outer Module)
	setParent(parent Module)
}

// Model is the base of all the user models. Embed it and create the model
// with Construct.
type Model struct {
	sim       *simulation.Simulation
	name      string
	localName string
	parent    Module
	outer     Module

	children    *Children
	connections *Connections
}

func (m *Model) attach(
	s *simulation.Simulation,
	name, localName string,
	parent, outer Module,
) {
	m.sim = s
	m.name = name
	m.localName = localName
	m.parent = parent
	m.outer = outer
}

func (m *Model) setParent(parent Module) {
	m.parent = parent
}

// Name returns the hierarchical name, such as "System.Server".
func (m *Model) Name() string {
	return m.name
}

// LocalName returns the name without the parent prefix.
func (m *Model) LocalName() string {
	return m.localName
}

// Sim returns the simulation the model belongs to.
func (m *Model) Sim() *simulation.Simulation {
	return m.sim
}

// Parent returns the parent model, or nil for a root model.
func (m *Model) Parent() Module {
	return m.parent
}

// Children returns the registry of child models.
func (m *Model) Children() *Children {
	if m.children == nil {
		m.children = newChildren(m)
	}

	return m.children
}

// Connections returns the outgoing connections of the model.
func (m *Model) Connections() *Connections {
	if m.connections == nil {
		m.connections = newConnections(m)
	}

	return m.connections
}

// Params returns the parameters of the simulation.
func (m *Model) Params() simulation.Params {
	return m.sim.Params()
}

// Now returns the current simulated time.
func (m *Model) Now() sim.VTimeInSec {
	return m.sim.Now()
}

// ScheduleAt registers an event at an absolute time.
func (m *Model) ScheduleAt(
	t sim.VTimeInSec,
	handler sim.Handler,
	payload any,
) (sim.EventHandle, error) {
	return m.sim.ScheduleAt(t, handler, payload)
}

// ScheduleAfter registers an event after a delay.
func (m *Model) ScheduleAfter(
	delay sim.VTimeInSec,
	handler sim.Handler,
	payload any,
) (sim.EventHandle, error) {
	return m.sim.ScheduleAfter(delay, handler, payload)
}

// Cancel prevents a scheduled event from firing.
func (m *Model) Cancel(h sim.EventHandle) {
	m.sim.Cancel(h)
}

// Logger returns a logger that tags entries with the model name.
func (m *Model) Logger() logrus.FieldLogger {
	return m.sim.Logger().WithField("module", m.name)
}

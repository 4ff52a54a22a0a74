package modeling

import (
	"fmt"

	"github.com/sarchlab/desim/sim"
)

// A Receiver can accept messages sent over a connection.
type Receiver interface {
	HandleMessage(msg any, sender Module) error
}

// A Connection delivers messages from its owner to a target after a delay.
type Connection struct {
	owner     *Model
	name      string
	target    Receiver
	delay     sim.VTimeInSec
	delayFunc func() sim.VTimeInSec
}

// Name returns the owner name followed by the connection name.
func (c *Connection) Name() string {
	return c.owner.Name() + "." + c.name
}

// Target returns the receiver of the messages.
func (c *Connection) Target() Receiver {
	return c.target
}

// SetDelay sets a fixed delivery delay.
func (c *Connection) SetDelay(delay sim.VTimeInSec) *Connection {
	c.delay = delay
	c.delayFunc = nil

	return c
}

// SetDelayFunc makes every message take the delay returned by f.
func (c *Connection) SetDelayFunc(f func() sim.VTimeInSec) *Connection {
	c.delayFunc = f
	return c
}

// Delay returns the delay the next message will take.
func (c *Connection) Delay() sim.VTimeInSec {
	if c.delayFunc != nil {
		return c.delayFunc()
	}

	return c.delay
}

// Send schedules the delivery of a message to the target.
func (c *Connection) Send(msg any) (sim.EventHandle, error) {
	h, err := c.owner.ScheduleAfter(c.Delay(), c, msg)
	if err != nil {
		return h, fmt.Errorf("send over %s: %w", c.Name(), err)
	}

	return h, nil
}

// Handle delivers the message carried by the event.
func (c *Connection) Handle(evt sim.Event) error {
	return c.target.HandleMessage(evt.Payload, c.owner.outer)
}

// Connections is the set of named outgoing connections of a model.
type Connections struct {
	owner  *Model
	names  []string
	byName map[string]*Connection
}

func newConnections(owner *Model) *Connections {
	return &Connections{
		owner:  owner,
		byName: make(map[string]*Connection),
	}
}

// Add creates a connection to target. An existing connection with the same
// name is replaced.
func (c *Connections) Add(name string, target Receiver) *Connection {
	if _, found := c.byName[name]; !found {
		c.names = append(c.names, name)
	}

	conn := &Connection{owner: c.owner, name: name, target: target}
	c.byName[name] = conn

	return conn
}

// Get returns the connection with the given name.
func (c *Connections) Get(name string) (*Connection, bool) {
	conn, found := c.byName[name]
	return conn, found
}

// Has tells if a connection has the name.
func (c *Connections) Has(name string) bool {
	_, found := c.byName[name]
	return found
}

// Remove deletes a connection. Messages already sent are still delivered.
func (c *Connections) Remove(name string) bool {
	if _, found := c.byName[name]; !found {
		return false
	}

	delete(c.byName, name)

	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}

	return true
}

// Names returns the connection names in the order they were added.
func (c *Connections) Names() []string {
	names := make([]string, len(c.names))
	copy(names, c.names)

	return names
}

// Targets returns the receivers of all connections in order.
func (c *Connections) Targets() []Receiver {
	targets := make([]Receiver, 0, len(c.names))
	for _, n := range c.names {
		targets = append(targets, c.byName[n].target)
	}

	return targets
}

package modeling

// Children is the named registry of the child models of a model.
type Children struct {
	owner  *Model
	names  []string
	byName map[string]Module
}

func newChildren(owner *Model) *Children {
	return &Children{owner: owner, byName: make(map[string]Module)}
}

// Add registers a child under a name and makes the owner its parent. A
// child already registered under the name is replaced and loses its parent.
func (c *Children) Add(name string, child Module) {
	if prev, found := c.byName[name]; found {
		if prev != child {
			prev.setParent(nil)
		}
	} else {
		c.names = append(c.names, name)
	}

	c.byName[name] = child
	child.setParent(c.owner.outer)
}

// Get returns the child with the given name.
func (c *Children) Get(name string) (Module, bool) {
	child, found := c.byName[name]
	return child, found
}

// Has tells if a child is registered under the name.
func (c *Children) Has(name string) bool {
	_, found := c.byName[name]
	return found
}

// Remove unregisters a child and detaches it from its parent. It returns
// false if there is no such child.
func (c *Children) Remove(name string) bool {
	child, found := c.byName[name]
	if !found {
		return false
	}

	child.setParent(nil)
	delete(c.byName, name)

	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}

	return true
}

// Names returns the child names in the order they were added.
func (c *Children) Names() []string {
	names := make([]string, len(c.names))
	copy(names, c.names)

	return names
}

// All returns the children in the order they were added.
func (c *Children) All() []Module {
	all := make([]Module, 0, len(c.names))
	for _, n := range c.names {
		all = append(all, c.byName[n])
	}

	return all
}

// Len returns the number of children.
func (c *Children) Len() int {
	return len(c.names)
}

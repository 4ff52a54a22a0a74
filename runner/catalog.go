package runner

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog maps model names to the functions that construct them.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]catalogEntry
}

type catalogEntry struct {
	root        RootFunc
	description string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{models: make(map[string]catalogEntry)}
}

// Register adds a model to the catalog. Names must be unique.
func (c *Catalog) Register(name, description string, root RootFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.models[name]; found {
		return fmt.Errorf("model %s already registered", name)
	}

	c.models[name] = catalogEntry{root: root, description: description}

	return nil
}

// MustRegister is Register but panics on error.
func (c *Catalog) MustRegister(name, description string, root RootFunc) {
	if err := c.Register(name, description, root); err != nil {
		panic(err)
	}
}

// Lookup returns the root function of a model.
func (c *Catalog) Lookup(name string) (RootFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.models[name]

	return entry.root, found
}

// Describe returns the description of a model.
func (c *Catalog) Describe(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.models[name].description
}

// Names returns the registered model names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

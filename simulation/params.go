package simulation

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Params is the read-only set of named parameters shared by every module of a
// simulation.
type Params struct {
	values map[string]any
}

// NewParams copies the given values into a new parameter set.
func NewParams(values map[string]any) Params {
	p := Params{values: make(map[string]any, len(values))}
	for k, v := range values {
		p.values[k] = v
	}

	return p
}

// Get returns the raw value of a parameter.
func (p Params) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Has tells if a parameter is set.
func (p Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p.values)
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// AsMap returns a copy of the parameters.
func (p Params) AsMap() map[string]any {
	m := make(map[string]any, len(p.values))
	for k, v := range p.values {
		m[k] = v
	}

	return m
}

// Decode converts a parameter into out, which must be a pointer. Strings such
// as "2.5" are accepted for numeric targets.
func (p Params) Decode(name string, out any) error {
	v, ok := p.values[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParamNotFound, name)
	}

	if err := mapstructure.WeakDecode(v, out); err != nil {
		return fmt.Errorf("parameter %s: %w", name, err)
	}

	return nil
}

// Float64 returns a parameter as a float64.
func (p Params) Float64(name string) (float64, error) {
	var f float64
	err := p.Decode(name, &f)

	return f, err
}

// Int returns a parameter as an int.
func (p Params) Int(name string) (int, error) {
	var i int
	err := p.Decode(name, &i)

	return i, err
}

// Text returns a parameter as a string.
func (p Params) Text(name string) (string, error) {
	var s string
	err := p.Decode(name, &s)

	return s, err
}

// Bool returns a parameter as a bool.
func (p Params) Bool(name string) (bool, error) {
	var b bool
	err := p.Decode(name, &b)

	return b, err
}

package modeling

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sarchlab/desim/simulation"
)

const (
	paramTag   = "param"
	defaultTag = "default"
)

// Construct creates a model of type T inside a simulation.
//
// Every field of T tagged `param:"name"` is filled from the simulation
// parameters, or from the literal in its `default:"..."` tag when the
// parameter is not set. The model is then bound to the simulation and its
// name is registered, so a taken name fails before setup runs. After setup
// the model is added to the children of its parent. If setup fails, the
// model and the models created below it are unregistered; events they
// scheduled stay scheduled.
func Construct[T any, PT interface {
	*T
	Module
}](
	s *simulation.Simulation,
	name string,
	parent Module,
	setup func(m PT) error,
) (PT, error) {
	if s == nil {
		return nil, ErrNoSimulation
	}

	if s.IsReleased() {
		return nil, simulation.ErrSimulationReleased
	}

	if err := nameMustBeValid(name); err != nil {
		return nil, err
	}

	fullName := name
	if parent != nil {
		if parent.Sim() != s {
			return nil, fmt.Errorf(
				"%w: parent %s belongs to another simulation",
				ErrInvalidName, parent.Name())
		}

		fullName = parent.Name() + "." + name
	}

	m := PT(new(T))

	if err := resolveParams(s.Params(), m, fullName); err != nil {
		return nil, err
	}

	m.attach(s, fullName, name, parent, m)

	if err := s.RegisterModule(m); err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(m); err != nil {
			unregisterTree(s, fullName)
			return nil, fmt.Errorf("construct %s: %w", fullName, err)
		}
	}

	if parent != nil {
		parent.Children().Add(name, m)
	}

	return m, nil
}

// unregisterTree removes a model and every model named below it.
func unregisterTree(s *simulation.Simulation, name string) {
	s.UnregisterModule(name)

	prefix := name + "."
	for _, other := range s.Modules() {
		if strings.HasPrefix(other.Name(), prefix) {
			s.UnregisterModule(other.Name())
		}
	}
}

func nameMustBeValid(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}

	if strings.ContainsAny(name, ". \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// ResolveParams fills the `param` tagged fields of target, which must be a
// pointer to a struct, from params.
func ResolveParams(params simulation.Params, target any) error {
	t := reflect.TypeOf(target)
	name := "<nil>"

	if t != nil {
		name = t.String()
	}

	return resolveParams(params, target, name)
}

func resolveParams(
	params simulation.Params,
	target any,
	modelName string,
) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a pointer to a struct",
			ErrInvalidParameter, target)
	}

	var missing []string

	err := resolveStructParams(params, v.Elem(), &missing)
	if err != nil {
		return fmt.Errorf("model %s: %w", modelName, err)
	}

	if len(missing) > 0 {
		return &MissingParameterError{Model: modelName, Names: missing}
	}

	return nil
}

func resolveStructParams(
	params simulation.Params,
	v reflect.Value,
	missing *[]string,
) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		paramName, tagged := field.Tag.Lookup(paramTag)
		if !tagged || paramName == "-" {
			if field.Anonymous && field.Type.Kind() == reflect.Struct &&
				field.IsExported() {
				err := resolveStructParams(params, v.Field(i), missing)
				if err != nil {
					return err
				}
			}

			continue
		}

		if !field.IsExported() {
			return fmt.Errorf("%w: field %s declaring %s is not exported",
				ErrInvalidParameter, field.Name, paramName)
		}

		if paramName == "" {
			paramName = field.Name
		}

		value, found := params.Get(paramName)
		if !found {
			literal, hasDefault := field.Tag.Lookup(defaultTag)
			if !hasDefault {
				*missing = append(*missing, paramName)
				continue
			}

			value = literal
		}

		err := decodeParam(value, v.Field(i).Addr().Interface())
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidParameter, paramName, err)
		}
	}

	return nil
}

func decodeParam(value any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}

	return decoder.Decode(value)
}

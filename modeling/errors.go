package modeling

import (
	"errors"
	"strings"
)

var (
	// ErrMissingParameter is returned when a declared parameter has neither a
	// value nor a default.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrInvalidParameter is returned when a parameter cannot be converted to
	// the type of the field that declares it.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoSimulation is returned when a model is constructed without a
	// simulation.
	ErrNoSimulation = errors.New("model requires a simulation")

	// ErrInvalidName is returned when a model name is empty or contains a
	// separator.
	ErrInvalidName = errors.New("invalid model name")
)

// MissingParameterError lists all the parameters a model needs but cannot
// find.
type MissingParameterError struct {
	Model string
	Names []string
}

func (e *MissingParameterError) Error() string {
	return "model " + e.Model + ": " + ErrMissingParameter.Error() + ": " +
		strings.Join(e.Names, ", ")
}

// Is makes the error match ErrMissingParameter.
func (e *MissingParameterError) Is(target error) bool {
	return target == ErrMissingParameter
}

package simulation

import "errors"

var (
	// ErrSimulationReleased is returned when a terminated simulation is used
	// to schedule events, run, or construct modules.
	ErrSimulationReleased = errors.New("simulation has been released")

	// ErrDuplicateModule is returned when two modules share a name.
	ErrDuplicateModule = errors.New("module already registered")

	// ErrParamNotFound is returned when a parameter is not in the set.
	ErrParamNotFound = errors.New("parameter not found")
)

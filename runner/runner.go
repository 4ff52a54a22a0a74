// Package runner builds a simulation, constructs the root model, and drives
// the run to a stop condition.
package runner

import (
	"errors"
	"fmt"

	"github.com/sarchlab/desim/sim"
	"github.com/sarchlab/desim/simulation"
)

// A RootFunc constructs the root model of a simulation. It usually calls
// modeling.Construct, which resolves the parameters and lets the model
// schedule its first events.
type RootFunc func(s *simulation.Simulation) error

// Options configures a run.
type Options struct {
	// Params become the parameters of the simulation.
	Params map[string]any

	// Limits bound the run. The zero value runs until the queue drains.
	Limits sim.RunLimits

	// Builder is the starting point of the simulation. The zero value uses
	// simulation.MakeBuilder().
	Builder *simulation.Builder

	// KeepAlive leaves the simulation live after the run so that it can be
	// inspected or run further. The caller must terminate it.
	KeepAlive bool
}

// Report is the final state of a run.
type Report struct {
	SimulationID  string         `json:"simulation_id"`
	FinalTime     sim.VTimeInSec `json:"final_time"`
	NumEvents     uint64         `json:"num_events"`
	PendingEvents int            `json:"pending_events"`
	StopReason    sim.StopReason `json:"stop_reason"`
	NumModules    int            `json:"num_modules"`
	Params        map[string]any `json:"params"`

	// Simulation is the simulation that ran. Unless KeepAlive is set it has
	// been terminated.
	Simulation *simulation.Simulation `json:"-"`
}

// Run builds a simulation with the given parameters, constructs the root
// model, and runs it. Build and construction errors are returned before any
// event is processed. An error from an event handler is returned together
// with the report of the halted run.
func Run(root RootFunc, opts Options) (Report, error) {
	if root == nil {
		return Report{}, errors.New("root function must not be nil")
	}

	builder := simulation.MakeBuilder()
	if opts.Builder != nil {
		builder = *opts.Builder
	}

	s, err := builder.WithParams(opts.Params).Build()
	if err != nil {
		return Report{}, fmt.Errorf("build simulation: %w", err)
	}

	if err := root(s); err != nil {
		return Report{Simulation: s}, errors.Join(
			fmt.Errorf("construct root model: %w", err),
			s.Terminate(),
		)
	}

	numModules := s.NumModules()

	summary, runErr := s.Run(opts.Limits)

	report := Report{
		SimulationID:  s.ID(),
		FinalTime:     summary.Now,
		NumEvents:     summary.NumEvents,
		PendingEvents: summary.Pending,
		StopReason:    summary.Reason,
		NumModules:    numModules,
		Params:        s.Params().AsMap(),
		Simulation:    s,
	}

	if opts.KeepAlive {
		return report, runErr
	}

	return report, errors.Join(runErr, s.Terminate())
}

// RunAll runs root once per parameter set, each time on a newly built
// simulation. Each set is laid over opts.Params. RunAll stops at the first
// failing run and returns the reports of the runs so far, the failing one
// included.
func RunAll(
	root RootFunc,
	paramSets []map[string]any,
	opts Options,
) ([]Report, error) {
	reports := make([]Report, 0, len(paramSets))

	for i, set := range paramSets {
		runOpts := opts
		runOpts.Params = mergeParams(opts.Params, set)

		report, err := Run(root, runOpts)
		reports = append(reports, report)

		if err != nil {
			return reports, fmt.Errorf("run %d: %w", i, err)
		}
	}

	return reports, nil
}

func mergeParams(base, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range overlay {
		merged[k] = v
	}

	return merged
}

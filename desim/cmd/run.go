package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/desim/config"
	"github.com/sarchlab/desim/datarecording"
	"github.com/sarchlab/desim/runner"
	"github.com/sarchlab/desim/sim"
	"github.com/sarchlab/desim/simulation"
)

// runOutput is what `desim run` prints.
type runOutput struct {
	Model string `json:"model"`
	runner.Report
}

// execEndHandler writes the execution information before the recorder is
// closed.
type execEndHandler struct {
	exec *datarecording.ExecRecorder
}

func (h execEndHandler) Handle(_ sim.VTimeInSec) {
	h.exec.End()
}

func newRunCommand(catalog *runner.Catalog) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "Run a model until its queue drains or a limit is reached.",
		Long: `Run a model from the catalog. Settings come from, in increasing ` +
			`priority, defaults, --config, --env-file, DESIM_* variables, ` +
			`flags, and --param. DESIM_PARAM_<NAME> sets a model parameter.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModel(cmd, args, catalog)
		},
	}

	f := runCmd.Flags()
	f.String("config", "", "YAML file with the run settings")
	f.String("env-file", "", "File with DESIM_* variables, .env if present")
	f.StringArrayP("param", "p", nil, "Model parameter as name=value")
	f.StringArray("sweep", nil,
		"Run once per value, as name=v1,v2; repeat to sweep combinations")
	f.Float64("until", 0, "Do not process events after this time")
	f.Uint64("max-events", 0, "Stop after processing this many events")
	f.String("trace-db", "", "Record the fired events into this SQLite file")
	f.Bool("monitor", false, "Serve the monitoring API while running")
	f.Int("monitor-port", 0, "Port of the monitoring API, random if 0")
	f.Bool("open-browser", false, "Open the monitoring page in a browser")
	f.String("log-level", config.DefaultLogLevel, "Log level")
	f.Bool("log-events", false, "Log every event at the trace level")
	f.StringP("output", "o", config.DefaultOutput, "Output format, table or json")

	return runCmd
}

func runModel(
	cmd *cobra.Command,
	args []string,
	catalog *runner.Catalog,
) error {
	opts := config.Options{Flags: cmd.Flags()}
	if len(args) > 0 {
		opts.Model = args[0]
	}

	opts.ConfigFile, _ = cmd.Flags().GetString("config")
	opts.EnvFile, _ = cmd.Flags().GetString("env-file")
	opts.ParamArgs, _ = cmd.Flags().GetStringArray("param")
	opts.SweepArgs, _ = cmd.Flags().GetStringArray("sweep")

	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	root, found := catalog.Lookup(cfg.Model)
	if !found {
		return fmt.Errorf("unknown model %q, see desim list", cfg.Model)
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	builder, recorder, err := newBuilder(cfg, logger)
	if err != nil {
		return err
	}

	if len(cfg.Sweeps) > 0 {
		return runSweep(cmd.OutOrStdout(), cfg, root, builder)
	}

	report, err := runner.Run(root, runner.Options{
		Params:  cfg.Params,
		Limits:  cfg.Limits(),
		Builder: &builder,
	})
	if report.SimulationID == "" {
		if report.Simulation == nil && recorder != nil {
			err = errors.Join(err, recorder.Close())
		}

		return err
	}

	out := runOutput{Model: cfg.Model, Report: report}
	if printErr := printReport(cmd.OutOrStdout(), cfg.Output, out); printErr != nil {
		return errors.Join(err, printErr)
	}

	return err
}

func runSweep(
	w io.Writer,
	cfg *config.RunConfig,
	root runner.RootFunc,
	builder simulation.Builder,
) error {
	reports, err := runner.RunAll(root, cfg.Sweeps, runner.Options{
		Params:  cfg.Params,
		Limits:  cfg.Limits(),
		Builder: &builder,
	})

	outs := make([]runOutput, 0, len(reports))
	for _, r := range reports {
		if r.SimulationID == "" {
			continue
		}

		outs = append(outs, runOutput{Model: cfg.Model, Report: r})
	}

	if printErr := printSweep(w, cfg, outs); printErr != nil {
		return errors.Join(err, printErr)
	}

	return err
}

func newLogger(cfg *config.RunConfig, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := cfg.Level()
	if err == nil {
		logger.SetLevel(level)
	}

	if cfg.LogEvents && !logger.IsLevelEnabled(logrus.TraceLevel) {
		logger.SetLevel(logrus.TraceLevel)
	}

	return logger
}

func newBuilder(
	cfg *config.RunConfig,
	logger *logrus.Logger,
) (simulation.Builder, datarecording.DataRecorder, error) {
	builder := simulation.MakeBuilder().WithLogger(logger)

	if cfg.LogEvents {
		builder = builder.WithEventLogging()
	}

	if cfg.Monitor {
		builder = builder.WithMonitoring().WithMonitorPort(cfg.MonitorPort)

		if cfg.OpenBrowser {
			builder = builder.WithBrowser()
		}
	}

	if cfg.TraceDB == "" {
		return builder, nil, nil
	}

	recorder, err := datarecording.New(cfg.TraceDB)
	if err != nil {
		return builder, nil, err
	}

	exec := datarecording.NewExecRecorder(recorder)
	exec.Start()

	builder = builder.
		WithDataRecorder(recorder).
		WithSimulationEndHandler(execEndHandler{exec: exec})

	return builder, recorder, nil
}

func printReport(w io.Writer, format string, out runOutput) error {
	if format == config.OutputJSON {
		return renderJSON(w, out)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Property", "Value"})
	t.AppendRows([]table.Row{
		{"Model", out.Model},
		{"Simulation ID", out.SimulationID},
		{"Final Time", float64(out.FinalTime)},
		{"Events", out.NumEvents},
		{"Pending Events", out.PendingEvents},
		{"Stop Reason", string(out.StopReason)},
		{"Modules", out.NumModules},
	})
	t.Render()

	return nil
}

func printSweep(w io.Writer, cfg *config.RunConfig, outs []runOutput) error {
	if cfg.Output == config.OutputJSON {
		return renderJSON(w, outs)
	}

	names := sweptNames(cfg.Sweeps)

	header := table.Row{"Run", "Simulation ID"}
	for _, name := range names {
		header = append(header, name)
	}
	header = append(header,
		"Final Time", "Events", "Pending Events", "Stop Reason")

	t := newTable(w)
	t.AppendHeader(header)

	for i, out := range outs {
		row := table.Row{i, out.SimulationID}
		for _, name := range names {
			row = append(row, out.Params[name])
		}
		row = append(row, float64(out.FinalTime), out.NumEvents,
			out.PendingEvents, string(out.StopReason))

		t.AppendRow(row)
	}

	t.Render()

	return nil
}

// sweptNames lists the swept parameters in the order of the first set.
func sweptNames(sweeps []map[string]any) []string {
	if len(sweeps) == 0 {
		return nil
	}

	names := make([]string, 0, len(sweeps[0]))
	for name := range sweeps[0] {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

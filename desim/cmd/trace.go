package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sarchlab/desim/config"
	"github.com/sarchlab/desim/datarecording"
	"github.com/sarchlab/desim/sim"
	"github.com/sarchlab/desim/tracing"
)

type traceOutput struct {
	Runs   []tracing.RunRecord   `json:"runs"`
	Events []tracing.EventRecord `json:"events"`
	Total  int                   `json:"total_events"`
}

func newTraceCommand() *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace <trace-db>",
		Short: "Show the runs and events recorded in a trace database.",
		Args:  cobra.ExactArgs(1),
		RunE:  showTrace,
	}

	f := traceCmd.Flags()
	f.Float64("start", 0, "Only show events at or after this time")
	f.Float64("end", 0, "Only show events at or before this time")
	f.String("handler", "", "Only show events of this handler")
	f.Int("limit", 20, "Maximum number of events to show, 0 for all")
	f.Int("offset", 0, "Number of events to skip")
	f.StringP("output", "o", config.DefaultOutput, "Output format, table or json")

	return traceCmd
}

func traceFileName(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if !strings.HasSuffix(path, ".sqlite3") {
		if _, err := os.Stat(path + ".sqlite3"); err == nil {
			return path + ".sqlite3", nil
		}
	}

	return "", fmt.Errorf("trace database %s not found", path)
}

func showTrace(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	format, _ := flags.GetString("output")
	if err := outputMustBeValid(format); err != nil {
		return err
	}

	filename, err := traceFileName(args[0])
	if err != nil {
		return err
	}

	dataReader, err := datarecording.NewReader(filename)
	if err != nil {
		return err
	}

	reader := tracing.NewTraceReader(dataReader)
	defer reader.Close()

	query := tracing.EventQuery{}
	query.Handler, _ = flags.GetString("handler")
	query.Limit, _ = flags.GetInt("limit")
	query.Offset, _ = flags.GetInt("offset")

	if flags.Changed("start") || flags.Changed("end") {
		start, _ := flags.GetFloat64("start")
		query.StartTime = sim.VTimeInSec(start)
		query.EndTime = sim.VTimeInSec(1e308)

		if flags.Changed("end") {
			end, _ := flags.GetFloat64("end")
			query.EndTime = sim.VTimeInSec(end)
		}

		query.EnableTimeRange = true
	}

	ctx := cmd.Context()

	var out traceOutput

	out.Runs, err = reader.ListRuns(ctx)
	if err != nil {
		return err
	}

	out.Events, out.Total, err = reader.ListEvents(ctx, query)
	if err != nil {
		return err
	}

	if format == config.OutputJSON {
		return renderJSON(cmd.OutOrStdout(), out)
	}

	printTrace(cmd, out)

	return nil
}

func printTrace(cmd *cobra.Command, out traceOutput) {
	w := cmd.OutOrStdout()

	runs := newTable(w)
	runs.SetTitle("Runs")
	runs.AppendHeader(table.Row{
		"Simulation", "Now", "Events", "Processed", "Pending", "Reason"})

	for _, r := range out.Runs {
		runs.AppendRow(table.Row{
			r.SimulationID, r.Now, r.NumEvents, r.Processed, r.Pending, r.Reason})
	}

	runs.Render()

	events := newTable(w)
	events.SetTitle("Events")
	events.AppendHeader(table.Row{"Seq", "Time", "Handler", "Payload"})

	for _, e := range out.Events {
		events.AppendRow(table.Row{e.Seq, e.Time, e.Handler, e.Payload})
	}

	events.Render()

	fmt.Fprintf(w, "(%d of %d events)\n", len(out.Events), out.Total)
}

package tracing

import (
	"context"
	"strings"

	"github.com/sarchlab/desim/datarecording"
	"github.com/sarchlab/desim/sim"
)

// EventQuery selects events from a trace.
type EventQuery struct {
	StartTime, EndTime sim.VTimeInSec
	EnableTimeRange    bool
	Handler            string
	Limit, Offset      int
}

// TraceReader reads back what an EventTracer recorded.
type TraceReader struct {
	reader datarecording.DataReader
}

// NewTraceReader creates a TraceReader on top of a DataReader.
func NewTraceReader(reader datarecording.DataReader) *TraceReader {
	reader.MapTable(EventTable, EventRecord{})
	reader.MapTable(RunTable, RunRecord{})

	return &TraceReader{reader: reader}
}

// ListRuns returns the recorded Run calls in the order they ended.
func (r *TraceReader) ListRuns(ctx context.Context) ([]RunRecord, error) {
	results, _, err := r.reader.Query(ctx, RunTable,
		datarecording.QueryParams{OrderBy: "rowid"})
	if err != nil {
		return nil, err
	}

	runs := make([]RunRecord, 0, len(results))
	for _, res := range results {
		runs = append(runs, *res.(*RunRecord))
	}

	return runs, nil
}

// ListEvents returns the events matching the query, ordered by sequence
// number, and the total number of matching events.
func (r *TraceReader) ListEvents(
	ctx context.Context,
	query EventQuery,
) ([]EventRecord, int, error) {
	var (
		conditions []string
		args       []any
	)

	if query.EnableTimeRange {
		conditions = append(conditions, "Time >= ? AND Time <= ?")
		args = append(args, float64(query.StartTime), float64(query.EndTime))
	}

	if query.Handler != "" {
		conditions = append(conditions, "Handler = ?")
		args = append(args, query.Handler)
	}

	results, total, err := r.reader.Query(ctx, EventTable,
		datarecording.QueryParams{
			Where:   strings.Join(conditions, " AND "),
			Args:    args,
			OrderBy: "Seq",
			Limit:   query.Limit,
			Offset:  query.Offset,
		})
	if err != nil {
		return nil, 0, err
	}

	events := make([]EventRecord, 0, len(results))
	for _, res := range results {
		events = append(events, *res.(*EventRecord))
	}

	return events, total, nil
}

// Close closes the underlying reader.
func (r *TraceReader) Close() error {
	return r.reader.Close()
}

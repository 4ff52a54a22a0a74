package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/desim/config"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func outputMustBeValid(format string) error {
	if format != config.OutputTable && format != config.OutputJSON {
		return fmt.Errorf("output must be %s or %s, got %q",
			config.OutputTable, config.OutputJSON, format)
	}

	return nil
}

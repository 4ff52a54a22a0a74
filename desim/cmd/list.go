package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sarchlab/desim/config"
	"github.com/sarchlab/desim/runner"
)

type modelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func newListCommand(catalog *runner.Catalog) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the models that can be run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("output")
			if err := outputMustBeValid(format); err != nil {
				return err
			}

			models := make([]modelInfo, 0)
			for _, name := range catalog.Names() {
				models = append(models,
					modelInfo{Name: name, Description: catalog.Describe(name)})
			}

			if format == config.OutputJSON {
				return renderJSON(cmd.OutOrStdout(), models)
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Model", "Description"})

			for _, m := range models {
				t.AppendRow(table.Row{m.Name, m.Description})
			}

			t.Render()

			return nil
		},
	}

	listCmd.Flags().StringP("output", "o", config.DefaultOutput,
		"Output format, table or json")

	return listCmd
}

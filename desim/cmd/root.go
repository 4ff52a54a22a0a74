// Package cmd provides the command-line interface for desim.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/desim/examples"
	"github.com/sarchlab/desim/runner"
)

// NewRootCommand creates the desim command with all its subcommands. The
// models are looked up in catalog.
func NewRootCommand(catalog *runner.Catalog) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "desim",
		Short: "desim runs discrete-event simulation models.",
		Long: `desim runs the models of its catalog with parameters taken ` +
			`from a config file, the environment, and flags. Runs can be ` +
			`traced into SQLite and inspected later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCommand(catalog),
		newListCommand(catalog),
		newTraceCommand(),
	)

	return rootCmd
}

// Execute runs the desim command with the example catalog. The exit
// handlers, which flush the recorders, run before the process exits.
func Execute() {
	err := NewRootCommand(examples.Catalog()).Execute()
	if err != nil {
		logrus.WithError(err).Error("desim failed")
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

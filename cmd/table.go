package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/stbs/app"
	"github.com/kilianp07/stbs/config"
	"github.com/kilianp07/stbs/core/scheduler"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Build the configured task set and print its schedule table",
	Args:  cobra.NoArgs,
	RunE:  runTable,
}

func init() {
	rootCmd.AddCommand(tableCmd)
}

func runTable(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	err = app.PrintTable(cfg, cmd.OutOrStdout())
	if errors.Is(err, scheduler.ErrInfeasible) || errors.Is(err, scheduler.ErrAllocationFailure) {
		return fmt.Errorf("schedule rejected: %w", err)
	}
	return err
}

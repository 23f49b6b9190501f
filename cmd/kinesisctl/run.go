package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario and record it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
				_ = logger.Sync()
			}()

			start := time.Now()
			result, err := client.RunScenario(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", result.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  scenario  %s\n", result.Scenario)
			fmt.Fprintf(cmd.OutOrStdout(), "  ticks     %s\n", humanize.Comma(int64(result.Ticks)))
			fmt.Fprintf(cmd.OutOrStdout(), "  degraded  %s\n", humanize.Comma(int64(result.Degraded)))
			fmt.Fprintf(cmd.OutOrStdout(), "  wall time %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
				_ = logger.Sync()
			}()

			runs, err := client.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no recorded runs")
				return nil
			}
			for _, r := range runs {
				age := r.CreatedAtUTC
				if t, err := time.Parse(time.RFC3339, r.CreatedAtUTC); err == nil {
					age = humanize.Time(t)
				}
				fmt.Fprintf(out, "%s  %-16s %-10s %6s ticks  %4d degraded  %s\n",
					r.ID, r.Scenario, r.Morphology,
					humanize.Comma(int64(r.Ticks)), r.Degraded, age)
			}
			return nil
		},
	}
}

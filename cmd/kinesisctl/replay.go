package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kinesis/internal/model"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var showDiag bool
	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Print the recorded frames of a run",
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

			rec, err := client.Replay(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s  scenario %s  %s frames\n",
				rec.Run.ID, rec.Run.Scenario, humanize.Comma(int64(len(rec.Frames))))

			frames := rec.Frames
			if limit > 0 && len(frames) > limit {
				frames = frames[len(frames)-limit:]
			}
			for _, f := range frames {
				fmt.Fprintf(out, "t=%06d %8.3fs%s\n", f.Tick, f.Time, flagSuffix(f.Flags))
				for _, js := range f.States {
					fmt.Fprintf(out, "  %-10s pos %s vel %s\n",
						js.JointID, formatDOFs(js.Position), formatDOFs(js.Velocity))
				}
			}
			if showDiag {
				for _, d := range rec.Diagnostics {
					fmt.Fprintf(out, "diag t=%06d iter=%d relax=%d residual=%.3g solve=%s\n",
						d.Tick, d.Iterations, d.Relaxations, d.Residual,
						time.Duration(d.SolveMicros)*time.Microsecond)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "tail", 0, "print only the last N frames (0 = all)")
	cmd.Flags().BoolVar(&showDiag, "diagnostics", false, "print per-tick solver diagnostics")
	return cmd
}

func flagSuffix(f model.FrameFlags) string {
	var tags []string
	if f.Degraded {
		tags = append(tags, "degraded")
	}
	if f.StaleContext {
		tags = append(tags, "stale")
	}
	if f.Relaxed {
		tags = append(tags, "relaxed")
	}
	if f.Repeated {
		tags = append(tags, "repeated")
	}
	if len(tags) == 0 {
		return ""
	}
	return "  [" + strings.Join(tags, ",") + "]"
}

func formatDOFs(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%+.4f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

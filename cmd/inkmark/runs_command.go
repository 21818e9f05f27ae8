package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"inkmark/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent watermarking runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortRunID(run.ID),
					string(run.Status),
					fmt.Sprintf("%.0f%%", run.Percent),
					run.OutputFormat,
					formatBytes(run.OutputBytes),
					run.CreatedAt.Local().Format(time.DateTime),
					runSummary(run),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Status", "Progress", "Format", "Output", "Started", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runSummary(run *runstore.Run) string {
	switch run.Status {
	case runstore.StatusFailed:
		return run.ErrorMessage
	case runstore.StatusCompleted:
		return run.OutputPath
	default:
		if run.TotalFrames > 0 {
			return "frame " + strconv.Itoa(run.FramesProcessed) + "/" + strconv.Itoa(run.TotalFrames)
		}
		return ""
	}
}

func formatBytes(n int64) string {
	switch {
	case n <= 0:
		return "-"
	case n < 1<<20:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	}
}

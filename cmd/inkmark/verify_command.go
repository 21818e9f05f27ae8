package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"inkmark/internal/pipeline"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var samplePoints int

	cmd := &cobra.Command{
		Use:   "verify <video-url-or-path> <watermark-url-or-path>",
		Short: "Heuristically check whether a video already carries the watermark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := pipeline.New(cfg, logger)
			present, err := p.VerifyWatermark(runCtx, args[0], args[1], samplePoints)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watermark detected: %s\n", yesNo(present))
			return nil
		},
	}

	cmd.Flags().IntVar(&samplePoints, "samples", 0, "Number of frames to sample (default 5)")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"inkmark/internal/compositor"
	"inkmark/internal/notifications"
	"inkmark/internal/pipeline"
	"inkmark/internal/runstore"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		watermarkURL string
		position     string
		opacity      float64
		scale        float64
		margin       int
		format       string
	)

	cmd := &cobra.Command{
		Use:   "run <video-url-or-path>",
		Short: "Watermark a video and write the result to the output directory",
		Args:  cobra.ExactArgs(1),
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

			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			p := pipeline.New(cfg, logger,
				pipeline.WithStore(store),
				pipeline.WithNotifier(notifications.NewService(cfg)),
			)

			opts := pipeline.Options{
				Position:     compositor.Position(position),
				Opacity:      opacity,
				Scale:        scale,
				Margin:       margin,
				WatermarkURL: watermarkURL,
				OutputFormat: format,
			}

			interactive := isatty.IsTerminal(os.Stdout.Fd())
			onProgress := func(pr pipeline.Progress) {
				if !interactive {
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\r%-12s %5.1f%%  frame %d/%d    ",
					pr.Phase, pr.Percent, pr.CurrentFrame, pr.TotalFrames)
			}

			blob, err := p.AddWatermark(runCtx, args[0], opts, onProgress)
			if interactive {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watermarked output written (%s, %d bytes)\n", blob.MIME, blob.Size())
			return nil
		},
	}

	cmd.Flags().StringVar(&watermarkURL, "watermark", "", "Watermark image URL or path (defaults to the configured image)")
	cmd.Flags().StringVar(&position, "position", "", "Overlay position: top-left, top-right, bottom-left, bottom-right, center")
	cmd.Flags().Float64Var(&opacity, "opacity", 0, "Overlay opacity between 0 and 1")
	cmd.Flags().Float64Var(&scale, "scale", 0, "Overlay width as a fraction of the video width")
	cmd.Flags().IntVar(&margin, "margin", 0, "Overlay margin in pixels")
	cmd.Flags().StringVar(&format, "format", "", "Output format: webm or mp4")

	return cmd
}

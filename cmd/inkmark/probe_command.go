package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"inkmark/internal/probe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report host capabilities and memory headroom",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := probe.Probe(cmd.Context(), cfg)
			pressure := probe.CheckMemoryPressure(cmd.Context(), cfg)

			names := make([]string, 0, len(report.Features))
			for name := range report.Features {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, yesNo(report.Features[name])})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Feature", "Available"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))

			if video, audio, container, ok := report.Codec(); ok {
				if audio == "" {
					fmt.Fprintf(out, "Selected codecs: %s (no audio encoder), container %s\n", video, container)
				} else {
					fmt.Fprintf(out, "Selected codecs: %s + %s, container %s\n", video, audio, container)
				}
			}
			fmt.Fprintf(out, "Supported: %s\n", yesNo(report.Supported))
			for _, warning := range report.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}

			fmt.Fprintf(out, "Available memory: %d MB (pressure %s, can proceed: %s)\n",
				pressure.AvailableMB, pressure.WarningLevel, yesNo(pressure.CanProceed))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inkmark/internal/validation"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a local video file against the configured input limits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			result, err := validation.CheckFile(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			if !result.Valid {
				return fmt.Errorf("validation failed: %s", result.Error)
			}
			fmt.Fprintln(out, "File is suitable for watermarking")
			return nil
		},
	}
}

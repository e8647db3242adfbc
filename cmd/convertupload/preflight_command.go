package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"convertupload/internal/preflight"
	"convertupload/internal/services"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check external dependencies and disk headroom",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			failed := 0
			for _, result := range results {
				label := "PASS"
				if !result.Passed {
					label = "FAIL"
					failed++
				}
				if colorize {
					if result.Passed {
						label = ansiGreen + label + ansiReset
					} else {
						label = ansiRed + label + ansiReset
					}
				}
				fmt.Fprintf(out, "%s  %-18s %s\n", label, result.Name, result.Detail)
			}
			if failed > 0 {
				return services.Wrap(services.ErrConfiguration, "preflight", "run checks",
					fmt.Sprintf("%d check(s) failed", failed), nil)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

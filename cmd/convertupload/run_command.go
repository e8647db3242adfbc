package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"convertupload/internal/kioskrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one capture, enhance and deliver session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner, err := kioskrun.New(cfg)
			if err != nil {
				return err
			}
			return runner.Run(runCtx)
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"convertupload/internal/delivery"
	"convertupload/internal/logging"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var email string
	var phone string

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			contact, err := delivery.NewContactInfo(email, phone, cfg.Delivery.CarrierGateways)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}

			dispatcher := delivery.NewDispatcher(cfg, delivery.NewSMTPMessenger(cfg), logger)
			outcomes := dispatcher.Deliver(cmd.Context(), contact, "https://example.com/test")

			out := cmd.OutOrStdout()
			failed := 0
			for _, outcome := range outcomes {
				if outcome.Err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %v\n", outcome.Channel, outcome.Recipient, outcome.Err)
					continue
				}
				fmt.Fprintf(out, "%s %s: sent\n", outcome.Channel, outcome.Recipient)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d test sends failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Recipient email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Ten digit phone number for SMS gateways")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

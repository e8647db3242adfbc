package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"convertupload/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showDeliveries bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past run records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			runs, err := st.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					stateLabel(run.State),
					ratingStars(run.Rating),
					run.ContactEmail,
					run.ShareLink,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "State", "Rating", "Email", "Link"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))

			if !showDeliveries {
				return nil
			}
			for _, run := range runs {
				records, err := st.Deliveries(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					continue
				}
				fmt.Fprintf(out, "\nDeliveries for %s:\n", shortID(run.ID))
				deliveryRows := make([][]string, 0, len(records))
				for _, record := range records {
					status := "sent"
					if record.Error != "" {
						status = record.Error
					}
					deliveryRows = append(deliveryRows, []string{
						record.Channel,
						record.Recipient,
						status,
						record.SentAt.Local().Format(time.Kitchen),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Channel", "Recipient", "Status", "At"},
					deliveryRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&showDeliveries, "deliveries", false, "Include per-recipient delivery outcomes")
	return cmd
}

var titleCase = cases.Title(language.English)

// stateLabel turns a machine state like "ready-for-upload" into a
// display label like "Ready For Upload".
func stateLabel(state string) string {
	return titleCase.String(strings.ReplaceAll(state, "-", " "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func ratingStars(rating int) string {
	if rating <= 0 {
		return "-"
	}
	stars := ""
	for i := 0; i < rating && i < 5; i++ {
		stars += "*"
	}
	return stars
}

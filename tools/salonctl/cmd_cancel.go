package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/michalsegal11/your-digital-companion/libs/policy"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

func newCanCancelCmd(g *globals) *cobra.Command {
	var (
		dateRaw       string
		timeRaw       string
		deadlineHours int
	)
	cmd := &cobra.Command{
		Use:   "can-cancel",
		Short: "Check whether an appointment may still be cancelled",
		Long: `Check an appointment against the cancellation deadline.

The command exits non-zero when cancellation is refused.

Example:
  salonctl can-cancel --date 2026-03-03 --time 10:00 --now 2026-03-02T09:00:00Z
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := g.snapshot()
			if err != nil {
				return err
			}
			now, err := g.now()
			if err != nil {
				return err
			}
			date, err := schedule.ParseDate(dateRaw)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			at, err := schedule.ParseClock(timeRaw)
			if err != nil {
				return fmt.Errorf("--time: %w", err)
			}
			hours := snap.Settings.CancellationDeadlineHours
			if cmd.Flags().Changed("deadline-hours") {
				hours = deadlineHours
			}

			decision := policy.NewCancellationPolicy(snap.Location(), now).Decide(date, at, hours)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "deadline: %s\n", decision.Deadline.Format(time.RFC3339))
			if !decision.Permitted {
				fmt.Fprintf(out, "refused: %s\n", decision.Reason)
				return fmt.Errorf("cancellation not permitted")
			}
			fmt.Fprintln(out, "permitted")
			return nil
		},
	}
	cmd.Flags().StringVar(&dateRaw, "date", "", "Appointment date as YYYY-MM-DD")
	cmd.Flags().StringVar(&timeRaw, "time", "", "Appointment start as HH:MM")
	cmd.Flags().IntVar(&deadlineHours, "deadline-hours", 0, "Override the configured cancellation deadline")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

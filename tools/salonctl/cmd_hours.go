package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

func newHoursCmd(g *globals) *cobra.Command {
	var (
		fromRaw string
		days    int
	)
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Print the working hours of consecutive dates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 || days > 366 {
				return fmt.Errorf("--days must be between 1 and 366")
			}
			snap, err := g.snapshot()
			if err != nil {
				return err
			}
			now, err := g.now()
			if err != nil {
				return err
			}
			loc := snap.Location()
			from, err := parseDateFlag("from", fromRaw, func() schedule.Date { return schedule.DateOf(now().In(loc)) })
			if err != nil {
				return err
			}

			cal := snap.Calendar()
			out := cmd.OutOrStdout()
			for i := 0; i < days; i++ {
				d := from.AddDays(i)
				line := cal.Describe(d)
				if reason, ok := cal.Blocked(d); ok {
					line += " (blocked"
					if reason != "" {
						line += ": " + reason
					}
					line += ")"
				}
				fmt.Fprintf(out, "%s\t%-9s\t%s\n", d, d.Weekday(), line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromRaw, "from", "", "First date as YYYY-MM-DD (default: today in the salon timezone)")
	cmd.Flags().IntVar(&days, "days", 7, "Number of dates to print")
	return cmd
}

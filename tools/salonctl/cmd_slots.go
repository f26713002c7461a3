package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michalsegal11/your-digital-companion/libs/availability"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

func newSlotsCmd(g *globals) *cobra.Command {
	var (
		dateRaw   string
		serviceID string
		booked    []string
		asJSON    bool
		freeOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List the slots of one date for a service",
		Long: `List every candidate start time of a date for a service.

Existing bookings are given as HH:MM or HH:MM/minutes (default 15 minutes).

Examples:
  salonctl slots --date 2026-03-03 --service purchase
  salonctl slots --date 2026-03-03 --service siruq --booked 10:00,11:30/60 --free
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
			loc := snap.Location()
			date, err := parseDateFlag("date", dateRaw, func() schedule.Date { return schedule.DateOf(now().In(loc)) })
			if err != nil {
				return err
			}
			bookings, err := parseBookings(date, booked)
			if err != nil {
				return err
			}

			duration := availability.ServiceDurations(snap.Durations()).Lookup(serviceID)
			slots := availability.NewGenerator(snap.Calendar(), loc, now).Generate(date, duration, bookings)
			if freeOnly {
				slots = availability.Available(slots)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(slots)
			}
			fmt.Fprintf(out, "%s %s (%d min): %s\n", date, date.Weekday(), duration, snap.Calendar().Describe(date))
			for _, s := range slots {
				state := "free"
				if !s.Available {
					state = "taken"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", s.Time, s.Shift, state)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dateRaw, "date", "", "Date as YYYY-MM-DD (default: today in the salon timezone)")
	cmd.Flags().StringVar(&serviceID, "service", "", "Service id (unknown ids use 15 minutes)")
	cmd.Flags().StringSliceVar(&booked, "booked", nil, "Existing bookings as HH:MM or HH:MM/minutes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print slots as JSON")
	cmd.Flags().BoolVar(&freeOnly, "free", false, "Only print available slots")
	return cmd
}

func parseBookings(date schedule.Date, raw []string) ([]availability.Booking, error) {
	out := make([]availability.Booking, 0, len(raw))
	for _, item := range raw {
		at, minutes, hasMinutes := strings.Cut(strings.TrimSpace(item), "/")
		start, err := schedule.ParseClock(at)
		if err != nil {
			return nil, fmt.Errorf("--booked %q: %w", item, err)
		}
		duration := availability.DefaultServiceDuration
		if hasMinutes {
			duration, err = strconv.Atoi(minutes)
			if err != nil || duration <= 0 {
				return nil, fmt.Errorf("--booked %q: minutes must be a positive integer", item)
			}
		}
		out = append(out, availability.Booking{Date: date, Start: start, DurationMinutes: duration})
	}
	return out, nil
}

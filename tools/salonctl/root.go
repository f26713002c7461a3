package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

type globals struct {
	configPath string
	nowRaw     string
	clock      func() time.Time
}

func newRootCmd(clock func() time.Time) *cobra.Command {
	g := &globals{clock: clock}
	root := &cobra.Command{
		Use:           "salonctl",
		Short:         "Inspect salon schedules, slots and cancellation rules offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Salon YAML config (default: built-in salon week)")
	root.PersistentFlags().StringVar(&g.nowRaw, "now", "", "Evaluate as if the current time were this RFC3339 instant")

	root.AddCommand(
		newSlotsCmd(g),
		newHoursCmd(g),
		newCanCancelCmd(g),
		newValidateCmd(g),
		newMigrateCmd(),
	)
	return root
}

func (g *globals) snapshot() (salonconfig.Snapshot, error) {
	if g.configPath == "" {
		return salonconfig.DefaultSnapshot(), nil
	}
	return salonconfig.LoadFile(g.configPath)
}

func (g *globals) now() (func() time.Time, error) {
	if g.nowRaw == "" {
		return g.clock, nil
	}
	t, err := time.Parse(time.RFC3339, g.nowRaw)
	if err != nil {
		return nil, fmt.Errorf("--now: %w", err)
	}
	return func() time.Time { return t }, nil
}

func parseDateFlag(name, raw string, fallback func() schedule.Date) (schedule.Date, error) {
	if raw == "" {
		return fallback(), nil
	}
	d, err := schedule.ParseDate(raw)
	if err != nil {
		return schedule.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a salon config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := g.snapshot()
			if err != nil {
				return err
			}
			if err := snap.Validate(); err != nil {
				return err
			}
			active := 0
			for _, svc := range snap.Services {
				if svc.Active {
					active++
				}
			}
			working := 0
			for _, d := range snap.Template.Days() {
				if len(d.Shifts) > 0 {
					working++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d working days, %d active services, %d blocked dates, timezone %s\n",
				working, active, len(snap.BlockedDates), snap.Location())
			return nil
		},
	}
}

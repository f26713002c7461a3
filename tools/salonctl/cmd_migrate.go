package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michalsegal11/your-digital-companion/libs/config"
	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/libs/migrations"
)

func newMigrateCmd() *cobra.Command {
	var (
		databaseURL string
		service     string
		list        bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply a service's embedded schema migrations",
		Long: `Apply the embedded SQL migrations of one service to its database.

Examples:
  salonctl migrate --service booking --database-url postgres://localhost/booking
  salonctl migrate --list
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, s := range migrations.Services() {
					migs, err := migrations.For(s)
					if err != nil {
						return err
					}
					for _, m := range migs {
						fmt.Fprintln(out, m.Version)
					}
				}
				return nil
			}
			if service == "" {
				return fmt.Errorf("--service is required")
			}
			if databaseURL == "" {
				databaseURL = config.String("DATABASE_URL", "")
			}
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}

			pool, err := db.Open(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.Apply(cmd.Context(), pool, service)
			for _, v := range applied {
				fmt.Fprintf(out, "applied %s\n", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "up to date")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (default: $DATABASE_URL)")
	cmd.Flags().StringVar(&service, "service", "", "Service schema to migrate")
	cmd.Flags().BoolVar(&list, "list", false, "List embedded migrations and exit")
	return cmd
}

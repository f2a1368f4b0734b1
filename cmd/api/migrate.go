package main

import (
	"fmt"

	"github.com/5w1tchy/library-api/internal/repository/sqlconnect"
	"github.com/5w1tchy/library-api/internal/store/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sqlconnect.ConnectDB(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		applied, err := migrations.Apply(cmd.Context(), db)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, v := range applied {
			fmt.Fprintf(out, "applied %s\n", v)
		}
		fmt.Fprintf(out, "schema up to date (%d applied)\n", len(applied))
		return nil
	},
}

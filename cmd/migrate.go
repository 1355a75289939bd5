package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/riftfin/riftcore/internal/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  "Applies the store schema and, on postgres, the ledger schema with one pool seeded per supported tenor.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate: store schema")
		}
		fmt.Printf("Store schema applied (%s)\n", cfg.Store.Driver)

		if env.Ledger != nil {
			if err := env.Ledger.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate: ledger schema")
			}
			fmt.Printf("Ledger schema applied, pools seeded for tenors %v\n", model.ValidTenors)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

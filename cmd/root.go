package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "riftcore",
	Short: "Invoice factoring risk, pricing, and pool ledger engine",
	Long:  "Scores and grades invoices, prices funding terms, runs compliance cases, gates funder access, and keeps tenor pool balances on an append-only ledger.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

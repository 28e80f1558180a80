package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsyte-agents/auction-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "auction-sync",
	Short: "Foreclosure auction reconciliation pipeline",
	Long:  "Scrapes auction listings, collects sale-outcome emails, reconciles both into one row per property, and pushes the result to Google Sheets or local files.",
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

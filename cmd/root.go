package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SPMStrategies/Candidate-Database/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "candidatedb",
	Short: "Election candidate ingestion and deduplication",
	Long:  "Fetches candidate listings from state election authorities, normalizes them, and merges them into the candidate database with fuzzy-match deduplication.",
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

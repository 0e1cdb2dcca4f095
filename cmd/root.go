package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "uvp-engine",
	Short: "Marketing copy generation pipeline",
	Long:  "Extracts business facts from websites via tiered Claude models, synthesizes unique value propositions, scores and enhances them, and expands approved results into multi-day campaigns.",
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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/interlink-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "interlink",
	Short: "Progressive geospatial interlinking",
	Long:  "Indexes a source geometry collection on an equigrid, streams a target collection past it, and verifies the highest-weighted candidate pairs for DE-9IM topological relations within a fixed budget.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdbikes/overlays/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "overlays",
	Short: "Build the GeoJSON overlays for the bike safety map",
	Long:  "Joins TIMS crash and victim tables, simplifies council district and bike infrastructure geometry, and writes web-ready GeoJSON overlays.",
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

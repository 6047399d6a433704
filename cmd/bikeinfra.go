package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sdbikes/overlays/internal/bikeinfra"
	"github.com/sdbikes/overlays/internal/config"
)

var bikeinfraCmd = &cobra.Command{
	Use:   "bikeinfra",
	Short: "Simplify the high-resolution bike infrastructure overlay",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("source"); v != "" {
			cfg.BikeInfra.SourcePath = v
		}
		if v, _ := cmd.Flags().GetString("output"); v != "" {
			cfg.BikeInfra.OutputPath = v
		}
		if cmd.Flags().Changed("tolerance") {
			cfg.BikeInfra.Tolerance, _ = cmd.Flags().GetFloat64("tolerance")
		}
		if err := cfg.Validate("bikeinfra"); err != nil {
			return err
		}

		opts := bikeinfraOptions(cfg)
		res, err := bikeinfra.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "bikeinfra")
		}

		fmt.Printf("bikeinfra: %d features, %d -> %d positions -> %s\n",
			res.Features, res.PositionsIn, res.PositionsOut, opts.OutputPath)
		return nil
	},
}

func init() {
	bikeinfraCmd.Flags().String("source", "", "high-resolution GeoJSON (default: from config)")
	bikeinfraCmd.Flags().String("output", "", "output GeoJSON path (default: from config)")
	bikeinfraCmd.Flags().Float64("tolerance", 0, "simplification tolerance in metres (default: from config or 5)")
	rootCmd.AddCommand(bikeinfraCmd)
}

func bikeinfraOptions(c *config.Config) bikeinfra.Options {
	return bikeinfra.Options{
		SourcePath: c.BikeInfra.SourcePath,
		OutputPath: c.BikeInfra.OutputPath,
		Tolerance:  c.BikeInfra.Tolerance,
	}
}

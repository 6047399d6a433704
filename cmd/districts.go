package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sdbikes/overlays/internal/config"
	"github.com/sdbikes/overlays/internal/districts"
)

var districtsCmd = &cobra.Command{
	Use:   "districts",
	Short: "Simplify council district boundaries and compute label points",
	Long: `Reads the zipped council district shapefile, simplifies each boundary in the US National
Atlas equal-area projection, and writes the boundaries plus one center point per district.

The source coordinate system comes from the shapefile's .prj unless --source-epsg is set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("source"); v != "" {
			cfg.Districts.SourcePath = v
		}
		if v, _ := cmd.Flags().GetString("output"); v != "" {
			cfg.Districts.OutputPath = v
		}
		if v, _ := cmd.Flags().GetString("centers-output"); v != "" {
			cfg.Districts.CentersOutputPath = v
		}
		if cmd.Flags().Changed("tolerance") {
			cfg.Districts.Tolerance, _ = cmd.Flags().GetFloat64("tolerance")
		}
		if v, _ := cmd.Flags().GetInt("source-epsg"); v != 0 {
			cfg.Districts.SourceEPSG = v
		}
		if err := cfg.Validate("districts"); err != nil {
			return err
		}

		opts := districtOptions(cfg)
		res, err := districts.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "districts")
		}

		fmt.Printf("districts: %d districts, %d -> %d positions -> %s, %s\n",
			res.Districts, res.PositionsIn, res.PositionsOut, opts.OutputPath, opts.CentersOutputPath)
		return nil
	},
}

func init() {
	districtsCmd.Flags().String("source", "", "zipped council district shapefile (default: from config)")
	districtsCmd.Flags().String("output", "", "boundary GeoJSON path (default: from config)")
	districtsCmd.Flags().String("centers-output", "", "center point GeoJSON path (default: from config)")
	districtsCmd.Flags().Float64("tolerance", 0, "simplification tolerance in metres (default: from config or 10)")
	districtsCmd.Flags().Int("source-epsg", 0, "EPSG code of the source, overriding the .prj")
	rootCmd.AddCommand(districtsCmd)
}

func districtOptions(c *config.Config) districts.Options {
	return districts.Options{
		SourcePath:        c.Districts.SourcePath,
		OutputPath:        c.Districts.OutputPath,
		CentersOutputPath: c.Districts.CentersOutputPath,
		Tolerance:         c.Districts.Tolerance,
		SourceEPSG:        c.Districts.SourceEPSG,
		TempDir:           c.Districts.TempDir,
	}
}

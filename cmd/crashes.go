package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdbikes/overlays/internal/config"
	"github.com/sdbikes/overlays/internal/crash"
)

var crashesCmd = &cobra.Command{
	Use:   "crashes",
	Short: "Join TIMS crashes to their youngest pedestrian or bicyclist victim",
	Long: `Reads the TIMS Crashes and Victims CSV exports, keeps pedestrian and bicyclist victims,
picks the youngest per crash, and writes every crash as a GeoJSON point with the victim's age
and role (null when the crash had no such victim).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("crashes"); v != "" {
			cfg.Crashes.CrashesPath = v
		}
		if v, _ := cmd.Flags().GetString("victims"); v != "" {
			cfg.Crashes.VictimsPath = v
		}
		if v, _ := cmd.Flags().GetString("output"); v != "" {
			cfg.Crashes.OutputPath = v
		}
		if cmd.Flags().Changed("keep-age-ties") {
			cfg.Crashes.KeepAgeTies, _ = cmd.Flags().GetBool("keep-age-ties")
		}
		if err := cfg.Validate("crashes"); err != nil {
			return err
		}

		opts := crashOptions(cfg)
		zap.L().With(zap.String("command", "crashes")).Info("building crash overlay",
			zap.String("crashes", opts.CrashesPath),
			zap.String("victims", opts.VictimsPath),
			zap.Stringer("ties", opts.Ties),
		)

		res, err := crash.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "crashes")
		}

		fmt.Printf("crashes: %d features (%d with a victim) -> %s\n", res.Rows, res.Matched, opts.OutputPath)
		return nil
	},
}

func init() {
	crashesCmd.Flags().String("crashes", "", "TIMS Crashes.csv (default: from config)")
	crashesCmd.Flags().String("victims", "", "TIMS Victims.csv (default: from config)")
	crashesCmd.Flags().String("output", "", "output GeoJSON path (default: from config)")
	crashesCmd.Flags().Bool("keep-age-ties", false, "keep every victim sharing the youngest age")
	rootCmd.AddCommand(crashesCmd)
}

func crashOptions(c *config.Config) crash.Options {
	ties := crash.TieFirst
	if c.Crashes.KeepAgeTies {
		ties = crash.TieAll
	}
	return crash.Options{
		CrashesPath: c.Crashes.CrashesPath,
		VictimsPath: c.Crashes.VictimsPath,
		OutputPath:  c.Crashes.OutputPath,
		Ties:        ties,
	}
}

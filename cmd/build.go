package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sdbikes/overlays/internal/bikeinfra"
	"github.com/sdbikes/overlays/internal/crash"
	"github.com/sdbikes/overlays/internal/districts"
)

// pipelineJob is one overlay build run by `overlays build`. Run returns a one-line summary.
type pipelineJob struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every overlay",
	Long: `Runs the crashes, districts, and bikeinfra builds using the paths and tolerances from
config. With build.concurrency 1 (the default) they run one after another in that order.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
			cfg.Build.Concurrency = v
		}
		if err := cfg.Validate("build"); err != nil {
			return err
		}

		jobs := []pipelineJob{
			{Name: "crashes", Run: func(ctx context.Context) (string, error) {
				opts := crashOptions(cfg)
				res, err := crash.Run(ctx, opts)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d features -> %s", res.Rows, opts.OutputPath), nil
			}},
			{Name: "districts", Run: func(ctx context.Context) (string, error) {
				opts := districtOptions(cfg)
				res, err := districts.Run(ctx, opts)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d districts -> %s", res.Districts, opts.OutputPath), nil
			}},
			{Name: "bikeinfra", Run: func(ctx context.Context) (string, error) {
				opts := bikeinfraOptions(cfg)
				res, err := bikeinfra.Run(ctx, opts)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d features -> %s", res.Features, opts.OutputPath), nil
			}},
		}

		summaries, err := runPipelines(ctx, cfg.Build.Concurrency, jobs)
		for i, s := range summaries {
			if s != "" {
				fmt.Printf("%s: %s\n", jobs[i].Name, s)
			}
		}
		return err
	},
}

func init() {
	buildCmd.Flags().Int("concurrency", 0, "overlays built in parallel (default: from config or 1)")
	rootCmd.AddCommand(buildCmd)
}

// runPipelines runs jobs with at most limit in flight. The first failure cancels the rest.
// Summaries are returned in job order; failed or skipped jobs leave theirs empty.
func runPipelines(ctx context.Context, limit int, jobs []pipelineJob) ([]string, error) {
	log := zap.L().With(zap.String("command", "build"), zap.String("run_id", uuid.NewString()))
	summaries := make([]string, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			start := time.Now()
			summary, err := job.Run(gctx)
			if err != nil {
				log.Error("overlay build failed", zap.String("overlay", job.Name), zap.Error(err))
				return eris.Wrapf(err, "build: %s", job.Name)
			}
			log.Info("overlay built", zap.String("overlay", job.Name), zap.Duration("elapsed", time.Since(start)))
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summaries, err
	}
	if err := ctx.Err(); err != nil {
		return summaries, eris.Wrap(err, "build: cancelled")
	}
	return summaries, nil
}

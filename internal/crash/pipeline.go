package crash

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sdbikes/overlays/internal/overlay"
)

// LayerName is the collection name written into the overlay.
const LayerName = "crashes"

// Options configures a crash overlay build.
type Options struct {
	CrashesPath string
	VictimsPath string
	OutputPath  string
	Ties        TiePolicy
}

// Result summarizes a build.
type Result struct {
	Crashes    int
	Victims    int
	Qualifying int
	Selected   int
	Rows       int
	Matched    int
}

// Build runs the pure part of the pipeline: role filter, youngest-victim reduction, left join,
// and conversion to features.
func Build(crashes []Crash, victims []Victim, ties TiePolicy) (*overlay.Layer, *Result) {
	qualifying := FilterRoles(victims)
	selected := ReduceYoungest(qualifying, ties)
	rows := Join(crashes, selected)

	res := &Result{
		Crashes:    len(crashes),
		Victims:    len(victims),
		Qualifying: len(qualifying),
		Selected:   len(selected),
		Rows:       len(rows),
	}
	for _, r := range rows {
		if r.Victim != nil {
			res.Matched++
		}
	}

	layer := &overlay.Layer{
		Name:     LayerName,
		SRID:     overlay.SRIDWGS84,
		Features: Features(rows),
	}
	return layer, res
}

// Run loads both tables, builds the overlay, and writes it to opts.OutputPath.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "crash"))

	crashes, err := LoadCrashes(opts.CrashesPath)
	if err != nil {
		return nil, err
	}
	victims, err := LoadVictims(opts.VictimsPath)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded tables", zap.Int("crashes", len(crashes)), zap.Int("victims", len(victims)))

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "crash: cancelled")
	}

	layer, res := Build(crashes, victims, opts.Ties)

	if err := overlay.WriteGeoJSON(opts.OutputPath, layer, overlay.WriteOptions{IncludeCRS: true}); err != nil {
		return nil, eris.Wrap(err, "crash: write overlay")
	}

	log.Info("crash overlay written",
		zap.String("path", opts.OutputPath),
		zap.Int("crashes", res.Crashes),
		zap.Int("qualifying_victims", res.Qualifying),
		zap.Int("rows", res.Rows),
		zap.Int("with_victim", res.Matched),
		zap.Stringer("ties", opts.Ties),
	)
	return res, nil
}

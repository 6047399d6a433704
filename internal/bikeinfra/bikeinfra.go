// Package bikeinfra reduces the high-resolution bike infrastructure overlay to a lighter one
// for the web map.
package bikeinfra

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sdbikes/overlays/internal/overlay"
	"github.com/sdbikes/overlays/internal/proj"
	"github.com/sdbikes/overlays/internal/shape"
)

// Options configures a bike infrastructure build.
type Options struct {
	SourcePath string
	OutputPath string
	// Tolerance is the simplification distance in metres.
	Tolerance float64
}

// Result summarizes a build.
type Result struct {
	Features     int
	PositionsIn  int
	PositionsOut int
}

// Run reads the source GeoJSON, simplifies it in EPSG:2163, and writes the reduced overlay.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "bikeinfra"))

	src, err := overlay.ReadGeoJSON(opts.SourcePath)
	if err != nil {
		return nil, eris.Wrap(err, "bikeinfra: read source")
	}
	log.Debug("loaded source", zap.String("path", opts.SourcePath), zap.Int("features", src.Len()))

	out, res, err := Simplify(src, opts.Tolerance)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "bikeinfra: cancelled")
	}

	wopts := overlay.WriteOptions{DropNullProperties: true, DropIDs: true}
	if err := overlay.WriteGeoJSON(opts.OutputPath, out, wopts); err != nil {
		return nil, eris.Wrap(err, "bikeinfra: write overlay")
	}

	log.Info("bike infrastructure overlay written",
		zap.String("path", opts.OutputPath),
		zap.Int("features", res.Features),
		zap.Int("positions_in", res.PositionsIn),
		zap.Int("positions_out", res.PositionsOut),
	)
	return res, nil
}

// Simplify projects a WGS84 layer to EPSG:2163, simplifies every geometry with the given
// tolerance, and projects the result back.
func Simplify(src *overlay.Layer, tolerance float64) (*overlay.Layer, *Result, error) {
	wgs84, err := proj.Lookup(proj.WGS84)
	if err != nil {
		return nil, nil, err
	}
	equalArea, err := proj.Lookup(proj.USNationalAtlasEA)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Features: src.Len()}
	out, err := src.Map(wgs84.EPSG(), func(f *geojson.Feature) (*geojson.Feature, error) {
		nf := &geojson.Feature{ID: f.ID, Properties: overlay.CopyProperties(f.Properties)}
		if f.Geometry == nil {
			return nf, nil
		}
		res.PositionsIn += shape.NumPositions(f.Geometry)

		g, err := proj.Transform(f.Geometry, wgs84, equalArea)
		if err != nil {
			return nil, eris.Wrapf(err, "bikeinfra: project feature %q", f.ID)
		}
		g, err = shape.Simplify(g, tolerance)
		if err != nil {
			return nil, eris.Wrapf(err, "bikeinfra: simplify feature %q", f.ID)
		}
		g, err = proj.Transform(g, equalArea, wgs84)
		if err != nil {
			return nil, eris.Wrapf(err, "bikeinfra: unproject feature %q", f.ID)
		}

		res.PositionsOut += shape.NumPositions(g)
		nf.Geometry = g
		return nf, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, res, nil
}

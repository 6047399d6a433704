// Package districts builds the council district overlays: simplified boundaries and one label
// point per district.
package districts

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sdbikes/overlays/internal/overlay"
	"github.com/sdbikes/overlays/internal/proj"
	"github.com/sdbikes/overlays/internal/shape"
	"github.com/sdbikes/overlays/internal/shapefile"
)

// Layer names written into the overlays.
const (
	BoundariesLayer = "council_districts"
	CentersLayer    = "council_district_centers"
)

// Options configures a district overlay build.
type Options struct {
	SourcePath        string
	OutputPath        string
	CentersOutputPath string
	// Tolerance is the simplification distance in metres.
	Tolerance float64
	// SourceEPSG overrides the coordinate system read from the archive's .prj.
	SourceEPSG int
	TempDir    string
}

// Result summarizes a build.
type Result struct {
	Districts      int
	PositionsIn    int
	PositionsOut   int
	SourceEPSG     int
	CentersWritten int
}

// Run reads the district archive, simplifies each boundary in the equal-area projection, and
// writes both the boundary and center overlays.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "districts"))

	src, err := shapefile.ReadArchive(opts.SourcePath, opts.TempDir)
	if err != nil {
		return nil, eris.Wrap(err, "districts: read source")
	}

	from, err := sourceProjection(src, opts.SourceEPSG)
	if err != nil {
		return nil, err
	}
	log.Debug("resolved source projection", zap.Int("epsg", from.EPSG()), zap.String("name", from.Name()))

	boundaries, centers, res, err := Build(src, from, opts.Tolerance)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "districts: cancelled")
	}

	if err := overlay.WriteGeoJSON(opts.OutputPath, boundaries, overlay.WriteOptions{IncludeCRS: true}); err != nil {
		return nil, eris.Wrap(err, "districts: write boundaries")
	}
	if err := overlay.WriteGeoJSON(opts.CentersOutputPath, centers, overlay.WriteOptions{IncludeCRS: true}); err != nil {
		return nil, eris.Wrap(err, "districts: write centers")
	}

	log.Info("district overlays written",
		zap.String("boundaries", opts.OutputPath),
		zap.String("centers", opts.CentersOutputPath),
		zap.Int("districts", res.Districts),
		zap.Int("positions_in", res.PositionsIn),
		zap.Int("positions_out", res.PositionsOut),
	)
	return res, nil
}

// Build projects src to EPSG:2163, derives simplified boundaries and area centroids there, and
// returns both as WGS84 layers. Centroids are taken from the unsimplified boundaries.
func Build(src *overlay.Layer, from proj.Projection, tolerance float64) (*overlay.Layer, *overlay.Layer, *Result, error) {
	equalArea, err := proj.Lookup(proj.USNationalAtlasEA)
	if err != nil {
		return nil, nil, nil, err
	}
	wgs84, err := proj.Lookup(proj.WGS84)
	if err != nil {
		return nil, nil, nil, err
	}

	res := &Result{Districts: src.Len(), SourceEPSG: from.EPSG()}

	projected, err := src.Map(equalArea.EPSG(), func(f *geojson.Feature) (*geojson.Feature, error) {
		g, err := proj.Transform(f.Geometry, from, equalArea)
		if err != nil {
			return nil, eris.Wrap(err, "districts: project to equal-area")
		}
		res.PositionsIn += shape.NumPositions(g)
		return &geojson.Feature{ID: f.ID, Geometry: g, Properties: f.Properties}, nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	boundaries, err := projected.Map(wgs84.EPSG(), func(f *geojson.Feature) (*geojson.Feature, error) {
		simplified, err := shape.Simplify(f.Geometry, tolerance)
		if err != nil {
			return nil, eris.Wrap(err, "districts: simplify")
		}
		g, err := proj.Transform(simplified, equalArea, wgs84)
		if err != nil {
			return nil, eris.Wrap(err, "districts: project to WGS84")
		}
		res.PositionsOut += shape.NumPositions(g)
		return &geojson.Feature{ID: f.ID, Geometry: g, Properties: overlay.CopyProperties(f.Properties)}, nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	boundaries.Name = BoundariesLayer

	centers, err := projected.Map(wgs84.EPSG(), func(f *geojson.Feature) (*geojson.Feature, error) {
		out := &geojson.Feature{ID: f.ID, Properties: overlay.CopyProperties(f.Properties)}
		if f.Geometry == nil {
			return out, nil
		}
		c, err := shape.Centroid(f.Geometry)
		if err != nil {
			return nil, eris.Wrap(err, "districts: centroid")
		}
		g, err := proj.Transform(c, equalArea, wgs84)
		if err != nil {
			return nil, eris.Wrap(err, "districts: project centroid")
		}
		out.Geometry = g
		res.CentersWritten++
		return out, nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	centers.Name = CentersLayer

	return boundaries, centers, res, nil
}

// sourceProjection picks the configured EPSG code when set, otherwise the archive's .prj.
func sourceProjection(src *overlay.Layer, epsg int) (proj.Projection, error) {
	if epsg != 0 {
		p, err := proj.Lookup(epsg)
		if err != nil {
			return nil, eris.Wrap(err, "districts: source projection")
		}
		return p, nil
	}
	if src.PRJ == "" {
		return nil, eris.Errorf("districts: %s has no .prj; set districts.source_epsg", src.Name)
	}
	p, err := proj.FromPRJ(src.PRJ)
	if err != nil {
		return nil, eris.Wrap(err, "districts: source projection")
	}
	return p, nil
}

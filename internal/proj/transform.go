package proj

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Transform returns a copy of g with every position converted from one projection to another,
// tagged with the target SRID. A nil geometry passes through as nil.
func Transform(g geom.T, from, to Projection) (geom.T, error) {
	if g == nil {
		return nil, nil
	}

	if gc, ok := g.(*geom.GeometryCollection); ok {
		out := geom.NewGeometryCollection()
		for i := 0; i < gc.NumGeoms(); i++ {
			child, err := Transform(gc.Geom(i), from, to)
			if err != nil {
				return nil, err
			}
			if err := out.Push(child); err != nil {
				return nil, eris.Wrap(err, "proj: rebuild collection")
			}
		}
		return out.SetSRID(to.EPSG()), nil
	}

	clone, err := cloneWithSRID(g, to.EPSG())
	if err != nil {
		return nil, err
	}

	flat := clone.FlatCoords()
	stride := clone.Stride()
	same := from.EPSG() == to.EPSG()
	for i := 0; i+1 < len(flat); i += stride {
		if same {
			continue
		}
		lon, lat := from.Inverse(flat[i], flat[i+1])
		x, y := to.Forward(lon, lat)
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return nil, eris.Errorf("proj: position (%g, %g) has no EPSG:%d equivalent", flat[i], flat[i+1], to.EPSG())
		}
		flat[i], flat[i+1] = x, y
	}

	return clone, nil
}

// Point converts a single position.
func Point(x, y float64, from, to Projection) (float64, float64) {
	lon, lat := from.Inverse(x, y)
	return to.Forward(lon, lat)
}

// cloneWithSRID deep-copies a non-collection geometry so its flat coordinates can be rewritten
// in place.
func cloneWithSRID(g geom.T, srid int) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return t.Clone().SetSRID(srid), nil
	case *geom.MultiPoint:
		return t.Clone().SetSRID(srid), nil
	case *geom.LineString:
		return t.Clone().SetSRID(srid), nil
	case *geom.MultiLineString:
		return t.Clone().SetSRID(srid), nil
	case *geom.LinearRing:
		return t.Clone().SetSRID(srid), nil
	case *geom.Polygon:
		return t.Clone().SetSRID(srid), nil
	case *geom.MultiPolygon:
		return t.Clone().SetSRID(srid), nil
	default:
		return nil, eris.Errorf("proj: unsupported geometry type %T", g)
	}
}

// Package shape applies the geometric reductions the overlays need: Douglas-Peucker
// simplification and area centroids. Both run in whatever planar units the input uses, so
// callers project into an equal-area system first.
package shape

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

const (
	minLinePositions = 2
	minRingPositions = 4
)

// Simplify returns a simplified copy of g. Lines keep at least two positions and rings keep at
// least four; a part that would drop below that keeps its original positions. Points and nil
// pass through unchanged.
func Simplify(g geom.T, tolerance float64) (geom.T, error) {
	if g == nil || tolerance <= 0 {
		return g, nil
	}

	switch t := g.(type) {
	case *geom.Point, *geom.MultiPoint:
		return g, nil

	case *geom.LineString:
		flat := simplifyPart(t.FlatCoords(), t.Stride(), tolerance, minLinePositions)
		return geom.NewLineStringFlat(t.Layout(), flat).SetSRID(t.SRID()), nil

	case *geom.MultiLineString:
		out := geom.NewMultiLineString(t.Layout()).SetSRID(t.SRID())
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			flat := simplifyPart(ls.FlatCoords(), ls.Stride(), tolerance, minLinePositions)
			if err := out.Push(geom.NewLineStringFlat(t.Layout(), flat)); err != nil {
				return nil, eris.Wrap(err, "shape: push linestring")
			}
		}
		return out, nil

	case *geom.Polygon:
		poly, err := simplifyPolygon(t, tolerance)
		if err != nil {
			return nil, err
		}
		return poly.SetSRID(t.SRID()), nil

	case *geom.MultiPolygon:
		out := geom.NewMultiPolygon(t.Layout()).SetSRID(t.SRID())
		for i := 0; i < t.NumPolygons(); i++ {
			poly, err := simplifyPolygon(t.Polygon(i), tolerance)
			if err != nil {
				return nil, err
			}
			if err := out.Push(poly); err != nil {
				return nil, eris.Wrap(err, "shape: push polygon")
			}
		}
		return out, nil

	case *geom.GeometryCollection:
		out := geom.NewGeometryCollection().SetSRID(t.SRID())
		for i := 0; i < t.NumGeoms(); i++ {
			child, err := Simplify(t.Geom(i), tolerance)
			if err != nil {
				return nil, err
			}
			if err := out.Push(child); err != nil {
				return nil, eris.Wrap(err, "shape: push geometry")
			}
		}
		return out, nil

	default:
		return nil, eris.Errorf("shape: cannot simplify %T", g)
	}
}

func simplifyPolygon(p *geom.Polygon, tolerance float64) (*geom.Polygon, error) {
	out := geom.NewPolygon(p.Layout())
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		flat := simplifyPart(ring.FlatCoords(), ring.Stride(), tolerance, minRingPositions)
		flat = keepWinding(p.Layout(), ring.FlatCoords(), flat)
		if err := out.Push(geom.NewLinearRingFlat(p.Layout(), flat)); err != nil {
			return nil, eris.Wrap(err, "shape: push ring")
		}
	}
	return out, nil
}

// keepWinding returns a copy of orig when simplifying a ring reversed its orientation, which
// only happens when the simplified ring crosses itself.
func keepWinding(layout geom.Layout, orig, simplified []float64) []float64 {
	stride := layout.Stride()
	if len(orig)/stride < minRingPositions || len(simplified)/stride < minRingPositions {
		return simplified
	}
	if xy.IsRingCounterClockwise(layout, orig) != xy.IsRingCounterClockwise(layout, simplified) {
		return append([]float64(nil), orig...)
	}
	return simplified
}

// simplifyPart runs Douglas-Peucker over one line or ring and copies the surviving positions.
func simplifyPart(flat []float64, stride int, tolerance float64, minPositions int) []float64 {
	if len(flat)/stride <= minPositions {
		return append([]float64(nil), flat...)
	}

	keep := xy.SimplifyFlatCoords(flat, tolerance, stride)
	if len(keep) < minPositions {
		return append([]float64(nil), flat...)
	}

	out := make([]float64, 0, len(keep)*stride)
	for _, idx := range keep {
		out = append(out, flat[idx*stride:(idx+1)*stride]...)
	}
	return out
}

package shapefile

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ToGeom converts a go-shp shape to a go-geom geometry. Null, empty, and unsupported shapes
// return nil, nil.
//
// Polygon parts are grouped the way the shapefile format defines them: clockwise rings are
// shells and counter-clockwise rings are holes of the shell that contains them. A single shell
// yields a Polygon, several a MultiPolygon.
func ToGeom(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case nil:
		return nil, nil

	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil

	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil, nil
		}
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points)), nil

	case *shp.PolyLine:
		return polyLineToGeom(s)

	case *shp.Polygon:
		return polygonToGeom(s)

	default:
		return nil, nil
	}
}

func polyLineToGeom(pl *shp.PolyLine) (geom.T, error) {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil, nil
	}

	parts := splitParts(pl.Parts, pl.Points)
	if len(parts) == 1 {
		return geom.NewLineStringFlat(geom.XY, parts[0]), nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i, part := range parts {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, part)); err != nil {
			return nil, eris.Wrapf(err, "shapefile: polyline part %d", i)
		}
	}
	return mls, nil
}

func polygonToGeom(p *shp.Polygon) (geom.T, error) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, nil
	}

	var shells [][]float64
	var holes [][]float64
	for _, ring := range splitParts(p.Parts, p.Points) {
		if len(ring) < 2*4 {
			continue
		}
		if signedArea(ring) <= 0 {
			shells = append(shells, ring)
		} else {
			holes = append(holes, ring)
		}
	}

	// Files written with the wrong winding order have no clockwise rings at all.
	if len(shells) == 0 {
		shells, holes = holes, nil
	}
	if len(shells) == 0 {
		return nil, nil
	}

	polys := make([]*geom.Polygon, len(shells))
	for i, shell := range shells {
		polys[i] = geom.NewPolygon(geom.XY)
		if err := polys[i].Push(geom.NewLinearRingFlat(geom.XY, shell)); err != nil {
			return nil, eris.Wrapf(err, "shapefile: shell %d", i)
		}
	}

	for i, hole := range holes {
		owner := -1
		first := geom.Coord{hole[0], hole[1]}
		for j, shell := range shells {
			if xy.IsPointInRing(geom.XY, first, shell) {
				owner = j
				break
			}
		}

		ring := geom.NewLinearRingFlat(geom.XY, hole)
		if owner < 0 {
			// An orphaned hole is kept as its own polygon rather than dropped.
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(ring); err != nil {
				return nil, eris.Wrapf(err, "shapefile: orphan hole %d", i)
			}
			polys = append(polys, poly)
			continue
		}
		if err := polys[owner].Push(ring); err != nil {
			return nil, eris.Wrapf(err, "shapefile: hole %d", i)
		}
	}

	if len(polys) == 1 {
		return polys[0], nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, poly := range polys {
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrapf(err, "shapefile: polygon %d", i)
		}
	}
	return mp, nil
}

// splitParts slices a shape's point array into flat XY coordinates, one slice per part.
func splitParts(parts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(parts))
	for i := range parts {
		start := parts[i]
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}
		out = append(out, flatPoints(points[start:end]))
	}
	return out
}

func flatPoints(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// signedArea is the shoelace area of a closed XY ring: positive when counter-clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

package shape

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Centroid returns the centroid of g as a point in the same SRID. Polygons use the area
// centroid, lines the length-weighted centroid.
func Centroid(g geom.T) (*geom.Point, error) {
	if g == nil {
		return nil, eris.New("shape: centroid of nil geometry")
	}
	if len(g.FlatCoords()) == 0 {
		return nil, eris.Errorf("shape: centroid of empty %T", g)
	}

	c, err := xy.Centroid(g)
	if err != nil {
		return nil, eris.Wrapf(err, "shape: centroid of %T", g)
	}

	return geom.NewPointFlat(geom.XY, []float64{c.X(), c.Y()}).SetSRID(g.SRID()), nil
}

package shape

import "github.com/twpayne/go-geom"

// NumPositions counts the coordinate tuples in g, descending into geometry collections.
func NumPositions(g geom.T) int {
	if g == nil {
		return 0
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		n := 0
		for i := 0; i < gc.NumGeoms(); i++ {
			n += NumPositions(gc.Geom(i))
		}
		return n
	}
	if g.Stride() == 0 {
		return 0
	}
	return len(g.FlatCoords()) / g.Stride()
}

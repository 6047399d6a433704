// Package overlay holds the in-memory feature layers passed between pipelines and
// reads and writes them as GeoJSON.
package overlay

import (
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRIDWGS84 is the EPSG code of every layer written for the web map.
const SRIDWGS84 = 4326

// Layer is a named set of features sharing one coordinate reference system.
type Layer struct {
	Name string
	// SRID is the EPSG code of the feature geometries. Zero means unknown.
	SRID int
	// PRJ is the raw ESRI WKT of the source, when it came with one.
	PRJ      string
	Features []*geojson.Feature
}

// Len returns the number of features in the layer.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Map returns a new layer with fn applied to every feature. The source layer is left untouched;
// fn receives the original feature and returns its replacement.
func (l *Layer) Map(srid int, fn func(*geojson.Feature) (*geojson.Feature, error)) (*Layer, error) {
	out := &Layer{
		Name:     l.Name,
		SRID:     srid,
		PRJ:      l.PRJ,
		Features: make([]*geojson.Feature, 0, len(l.Features)),
	}
	for _, f := range l.Features {
		nf, err := fn(f)
		if err != nil {
			return nil, err
		}
		out.Features = append(out.Features, nf)
	}
	return out, nil
}

// CopyProperties returns a shallow copy of a feature's properties.
func CopyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

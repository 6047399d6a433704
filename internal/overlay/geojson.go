package overlay

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

const crs84 = "urn:ogc:def:crs:OGC:1.3:CRS84"

// WriteOptions controls how a layer is serialized.
type WriteOptions struct {
	// IncludeCRS adds the collection "name" and a CRS84 "crs" member.
	IncludeCRS bool
	// DropNullProperties omits properties whose value is nil.
	DropNullProperties bool
	// DropIDs omits feature ids.
	DropIDs bool
}

type namedCRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type featureCollection struct {
	Type     string             `json:"type"`
	Name     string             `json:"name,omitempty"`
	CRS      *namedCRS          `json:"crs,omitempty"`
	Features []*geojson.Feature `json:"features"`
}

type rawCollection struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Features []json.RawMessage `json:"features"`
}

// ReadGeoJSON loads a GeoJSON FeatureCollection. Coordinates are assumed to be WGS84.
func ReadGeoJSON(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "overlay: read %s", path)
	}

	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "overlay: decode %s", path)
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("overlay: %s: expected FeatureCollection, got %q", path, fc.Type)
	}

	features := make([]*geojson.Feature, 0, len(fc.Features))
	for i, raw := range fc.Features {
		raw, err := stringifyID(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "overlay: %s: feature %d", path, i)
		}
		var f geojson.Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, eris.Wrapf(err, "overlay: %s: decode feature %d", path, i)
		}
		features = append(features, &f)
	}

	name := fc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &Layer{
		Name:     name,
		SRID:     SRIDWGS84,
		Features: features,
	}, nil
}

// stringifyID rewrites a numeric feature "id" as a JSON string, the only id form the
// go-geom decoder accepts.
func stringifyID(raw json.RawMessage) (json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, eris.Wrap(err, "decode members")
	}
	id, ok := members["id"]
	if !ok || len(id) == 0 || id[0] == '"' {
		return raw, nil
	}
	if string(id) == "null" {
		delete(members, "id")
	} else {
		quoted, err := json.Marshal(string(id))
		if err != nil {
			return nil, eris.Wrap(err, "quote id")
		}
		members["id"] = quoted
	}
	out, err := json.Marshal(members)
	if err != nil {
		return nil, eris.Wrap(err, "encode members")
	}
	return out, nil
}

// WriteGeoJSON writes the layer to path as a FeatureCollection. The file is written to a
// temporary sibling and renamed into place, so a failed write leaves any previous file intact.
func WriteGeoJSON(path string, layer *Layer, opts WriteOptions) error {
	if layer.SRID != 0 && layer.SRID != SRIDWGS84 {
		return eris.Errorf("overlay: layer %q has SRID %d, GeoJSON output must be EPSG:%d", layer.Name, layer.SRID, SRIDWGS84)
	}

	fc := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]*geojson.Feature, 0, len(layer.Features)),
	}
	if opts.IncludeCRS {
		fc.Name = layer.Name
		fc.CRS = &namedCRS{Type: "name", Properties: map[string]string{"name": crs84}}
	}
	for _, f := range layer.Features {
		fc.Features = append(fc.Features, outputFeature(f, opts))
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "overlay: create output dir")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return eris.Wrap(err, "overlay: create temp file")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return eris.Wrapf(err, "overlay: encode %s", layer.Name)
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "overlay: flush")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "overlay: close temp file")
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return eris.Wrap(err, "overlay: chmod temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "overlay: replace %s", path)
	}
	committed = true

	zap.L().Debug("overlay: wrote layer",
		zap.String("layer", layer.Name),
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
	)
	return nil
}

func outputFeature(f *geojson.Feature, opts WriteOptions) *geojson.Feature {
	if !opts.DropIDs && !opts.DropNullProperties {
		return f
	}

	out := &geojson.Feature{
		ID:         f.ID,
		BBox:       f.BBox,
		Geometry:   f.Geometry,
		Properties: f.Properties,
	}
	if opts.DropIDs {
		out.ID = ""
	}
	if opts.DropNullProperties && f.Properties != nil {
		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			if v != nil {
				props[k] = v
			}
		}
		out.Properties = props
	}
	return out
}

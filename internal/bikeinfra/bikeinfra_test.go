package bikeinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sdbikes/overlays/internal/overlay"
)

// denseLine returns a straight run of n positions heading east along 32.72N.
func denseLine(n int) string {
	coords := make([]string, n)
	for i := range coords {
		coords[i] = fmt.Sprintf("[%.6f,32.72]", -117.16+float64(i)*0.0005)
	}
	return "[" + strings.Join(coords, ",") + "]"
}

func sourceGeoJSON() string {
	return `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","id":1,"geometry":{"type":"LineString","coordinates":` + denseLine(40) + `},` +
		`"properties":{"name":"Harbor Dr","class":"II","notes":null}},` +
		`{"type":"Feature","id":"b","geometry":{"type":"MultiLineString","coordinates":[` +
		denseLine(10) + `,[[-117.10,32.70],[-117.09,32.71]]]},"properties":{"name":null,"class":"IV"}},` +
		`{"type":"Feature","geometry":null,"properties":{"name":"planned"}}` +
		`]}`
}

func writeSource(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	opts := Options{
		SourcePath: filepath.Join(dir, "current_bike_infrastructure_highres.geojson"),
		OutputPath: filepath.Join(dir, "out", "current_bike_infrastructure.geojson"),
		Tolerance:  5,
	}
	require.NoError(t, os.WriteFile(opts.SourcePath, []byte(sourceGeoJSON()), 0o644))
	return opts
}

func TestRun(t *testing.T) {
	opts := writeSource(t)

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Features)
	assert.Equal(t, 52, res.PositionsIn)
	assert.Less(t, res.PositionsOut, res.PositionsIn)

	data, err := os.ReadFile(opts.OutputPath)
	require.NoError(t, err)

	var fc map[string]any
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
	assert.NotContains(t, fc, "crs")
	assert.NotContains(t, fc, "name")

	features := fc["features"].([]any)
	require.Len(t, features, 3)
	for _, raw := range features {
		assert.NotContains(t, raw.(map[string]any), "id")
	}

	first := features[0].(map[string]any)
	assert.Equal(t, map[string]any{"name": "Harbor Dr", "class": "II"}, first["properties"])
	line := first["geometry"].(map[string]any)
	assert.Equal(t, "LineString", line["type"])
	coords := line["coordinates"].([]any)
	assert.Len(t, coords, 2)
	start := coords[0].([]any)
	assert.InDelta(t, -117.16, start[0].(float64), 1e-7)
	assert.InDelta(t, 32.72, start[1].(float64), 1e-7)

	second := features[1].(map[string]any)
	assert.Equal(t, map[string]any{"class": "IV"}, second["properties"])
	assert.Equal(t, "MultiLineString", second["geometry"].(map[string]any)["type"])

	third := features[2].(map[string]any)
	assert.Nil(t, third["geometry"])
}

func TestRun_Idempotent(t *testing.T) {
	opts := writeSource(t)

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	first, err := os.ReadFile(opts.OutputPath)
	require.NoError(t, err)

	_, err = Run(context.Background(), opts)
	require.NoError(t, err)
	second, err := os.ReadFile(opts.OutputPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Run(context.Background(), Options{
		SourcePath: filepath.Join(dir, "missing.geojson"),
		OutputPath: filepath.Join(dir, "out.geojson"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bikeinfra: read source")

	opts := writeSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, opts)
	require.Error(t, err)
	_, statErr := os.Stat(opts.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSimplify_KeepsSourceAndShortSegments(t *testing.T) {
	short := geom.NewLineStringFlat(geom.XY, []float64{-117.1, 32.7, -117.10001, 32.70001, -117.10002, 32.7})
	src := &overlay.Layer{
		Name: "bike",
		SRID: overlay.SRIDWGS84,
		Features: []*geojson.Feature{
			{ID: "x", Geometry: short, Properties: map[string]any{"class": "I"}},
		},
	}

	out, res, err := Simplify(src, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PositionsIn)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "x", out.Features[0].ID)
	assert.Equal(t, overlay.SRIDWGS84, out.Features[0].Geometry.SRID())

	// A line never drops below its two endpoints.
	assert.GreaterOrEqual(t, res.PositionsOut, 2)
	assert.Len(t, short.FlatCoords(), 6)

	out.Features[0].Properties["class"] = "changed"
	assert.Equal(t, "I", src.Features[0].Properties["class"])
}

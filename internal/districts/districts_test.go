package districts

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sdbikes/overlays/internal/overlay"
	"github.com/sdbikes/overlays/internal/proj"
)

const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// denseSquare returns a clockwise ring around [x0,x1]x[y0,y1] with n extra points on every edge.
func denseSquare(x0, y0, x1, y1 float64, n int) []shp.Point {
	corners := []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}
	var ring []shp.Point
	for i := 0; i < len(corners)-1; i++ {
		a, b := corners[i], corners[i+1]
		for j := 0; j <= n; j++ {
			f := float64(j) / float64(n+1)
			ring = append(ring, shp.Point{X: a.X + f*(b.X-a.X), Y: a.Y + f*(b.Y-a.Y)})
		}
	}
	return append(ring, corners[0])
}

// writeArchive builds Council_Districts.zip with two districts near San Diego. An empty prj
// leaves the .prj file out.
func writeArchive(t *testing.T, prj string) string {
	t.Helper()
	src := t.TempDir()

	shpPath := filepath.Join(src, "council_districts.shp")
	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.NumberField("DISTRICT", 4),
		shp.StringField("NAME", 32),
	}))

	one := shp.Polygon(*shp.NewPolyLine([][]shp.Point{denseSquare(-117.20, 32.70, -117.10, 32.80, 20)}))
	row := w.Write(&one)
	require.NoError(t, w.WriteAttribute(int(row), 0, 1))
	require.NoError(t, w.WriteAttribute(int(row), 1, "District 1"))

	two := shp.Polygon(*shp.NewPolyLine([][]shp.Point{denseSquare(-117.10, 32.70, -117.00, 32.80, 20)}))
	row = w.Write(&two)
	require.NoError(t, w.WriteAttribute(int(row), 0, 2))
	require.NoError(t, w.WriteAttribute(int(row), 1, "District 2"))
	w.Close()

	// shp.Create names the table "<base>dbf".
	base := strings.TrimSuffix(shpPath, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}

	if prj != "" {
		require.NoError(t, os.WriteFile(filepath.Join(src, "council_districts.prj"), []byte(prj), 0o644))
	}

	zipPath := filepath.Join(t.TempDir(), "Council_Districts.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		f, err := os.Open(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		dst, err := zw.Create(e.Name())
		require.NoError(t, err)
		_, err = io.Copy(dst, f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return zipPath
}

func testOptions(t *testing.T, source string) Options {
	out := t.TempDir()
	return Options{
		SourcePath:        source,
		OutputPath:        filepath.Join(out, "council_districts.geojson"),
		CentersOutputPath: filepath.Join(out, "council_district_centers.geojson"),
		Tolerance:         10,
		TempDir:           t.TempDir(),
	}
}

type outGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type outFeature struct {
	Geometry   outGeometry    `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type outCRS struct {
	Properties map[string]string `json:"properties"`
}

type outCollection struct {
	Type     string       `json:"type"`
	Name     string       `json:"name"`
	CRS      *outCRS      `json:"crs"`
	Features []outFeature `json:"features"`
}

func readCollection(t *testing.T, path string) outCollection {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc outCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	return fc
}

func TestRun(t *testing.T) {
	opts := testOptions(t, writeArchive(t, wgs84PRJ))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Districts)
	assert.Equal(t, 2, res.CentersWritten)
	assert.Equal(t, proj.WGS84, res.SourceEPSG)
	assert.Less(t, res.PositionsOut, res.PositionsIn)

	boundaries := readCollection(t, opts.OutputPath)
	assert.Equal(t, "FeatureCollection", boundaries.Type)
	assert.Equal(t, BoundariesLayer, boundaries.Name)
	require.NotNil(t, boundaries.CRS)
	assert.Equal(t, "urn:ogc:def:crs:OGC:1.3:CRS84", boundaries.CRS.Properties["name"])
	require.Len(t, boundaries.Features, 2)

	centers := readCollection(t, opts.CentersOutputPath)
	assert.Equal(t, CentersLayer, centers.Name)
	require.Len(t, centers.Features, 2)

	for i := range boundaries.Features {
		b, c := boundaries.Features[i], centers.Features[i]
		assert.Equal(t, "Polygon", b.Geometry.Type)
		assert.Equal(t, "Point", c.Geometry.Type)
		assert.Equal(t, b.Properties, c.Properties)
	}
	assert.Equal(t, 1.0, boundaries.Features[0].Properties["DISTRICT"])
	assert.Equal(t, "District 2", boundaries.Features[1].Properties["NAME"])

	var ring [][][]float64
	require.NoError(t, json.Unmarshal(boundaries.Features[0].Geometry.Coordinates, &ring))
	require.Len(t, ring, 1)
	assert.GreaterOrEqual(t, len(ring[0]), 4)
	assert.Less(t, len(ring[0]), 20)

	var center []float64
	require.NoError(t, json.Unmarshal(centers.Features[0].Geometry.Coordinates, &center))
	assert.InDelta(t, -117.15, center[0], 1e-3)
	assert.InDelta(t, 32.75, center[1], 1e-3)
}

func TestRun_SourceEPSGOverride(t *testing.T) {
	opts := testOptions(t, writeArchive(t, ""))

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .prj")
	_, statErr := os.Stat(opts.OutputPath)
	assert.True(t, os.IsNotExist(statErr))

	opts.SourceEPSG = proj.NAD83
	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, proj.NAD83, res.SourceEPSG)
	assert.FileExists(t, opts.OutputPath)
	assert.FileExists(t, opts.CentersOutputPath)
}

func TestRun_Errors(t *testing.T) {
	t.Run("unknown prj", func(t *testing.T) {
		opts := testOptions(t, writeArchive(t, `PROJCS["Somewhere_Else",GEOGCS["x"]]`))
		_, err := Run(context.Background(), opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Somewhere_Else")
	})

	t.Run("unsupported override", func(t *testing.T) {
		opts := testOptions(t, writeArchive(t, wgs84PRJ))
		opts.SourceEPSG = 3857
		_, err := Run(context.Background(), opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EPSG:3857")
	})

	t.Run("missing archive", func(t *testing.T) {
		opts := testOptions(t, filepath.Join(t.TempDir(), "Council_Districts.zip"))
		_, err := Run(context.Background(), opts)
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		opts := testOptions(t, writeArchive(t, wgs84PRJ))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, opts)
		require.Error(t, err)
		_, statErr := os.Stat(opts.CentersOutputPath)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestBuild_SmallDistrictKeepsRing(t *testing.T) {
	// About 5 m across, well under the tolerance.
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		-117.15, 32.75, -117.15, 32.75005, -117.14995, 32.75005, -117.14995, 32.75, -117.15, 32.75,
	}, []int{10})
	src := &overlay.Layer{
		Name: "tiny",
		Features: []*geojson.Feature{
			{Geometry: poly, Properties: map[string]any{"DISTRICT": int64(9)}},
			{Properties: map[string]any{"DISTRICT": int64(10)}},
		},
	}
	wgs84, err := proj.Lookup(proj.WGS84)
	require.NoError(t, err)

	boundaries, centers, res, err := Build(src, wgs84, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CentersWritten)
	assert.Equal(t, overlay.SRIDWGS84, boundaries.SRID)

	out := boundaries.Features[0].Geometry
	require.NotNil(t, out)
	assert.Equal(t, 5, len(out.FlatCoords())/out.Stride())
	assert.InDelta(t, -117.15, out.FlatCoords()[0], 1e-7)
	assert.InDelta(t, 32.75, out.FlatCoords()[1], 1e-7)

	assert.Nil(t, boundaries.Features[1].Geometry)
	assert.Nil(t, centers.Features[1].Geometry)
	assert.Equal(t, int64(10), centers.Features[1].Properties["DISTRICT"])

	// Source layer is untouched.
	assert.Same(t, poly, src.Features[0].Geometry)
	assert.Zero(t, src.SRID)
}

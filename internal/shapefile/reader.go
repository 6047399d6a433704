package shapefile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sdbikes/overlays/internal/overlay"
)

// Read loads every record of a .shp file and its .dbf attributes. The sibling .prj, when
// present, is kept on the layer so callers can identify the coordinate system; SRID is left
// zero.
func Read(shpPath string) (*overlay.Layer, error) {
	if err := checkDBF(shpPath); err != nil {
		return nil, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimSpace(strings.TrimRight(f.String(), "\x00"))
	}

	layer := &overlay.Layer{
		Name: strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath)),
	}

	var nullGeoms int
	for reader.Next() {
		n, shape := reader.Shape()

		g, err := ToGeom(shape)
		if err != nil {
			return nil, eris.Wrapf(err, "shapefile: record %d", n)
		}
		if g == nil {
			nullGeoms++
		}

		props := make(map[string]any, len(fields))
		for i, f := range fields {
			props[names[i]] = attributeValue(f, reader.Attribute(i))
		}

		layer.Features = append(layer.Features, &geojson.Feature{
			Geometry:   g,
			Properties: props,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", shpPath)
	}

	prj, err := readPRJ(shpPath)
	if err != nil {
		return nil, err
	}
	layer.PRJ = prj

	if nullGeoms > 0 {
		zap.L().Debug("shapefile: records without geometry",
			zap.String("layer", layer.Name),
			zap.Int("count", nullGeoms),
		)
	}

	return layer, nil
}

// attributeValue types a raw DBF value by its field descriptor. Blank values become nil;
// values that fail to parse are kept as trimmed strings.
func attributeValue(f shp.Field, raw string) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}

	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				return v
			}
		}
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			return v
		}
	case 'F':
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			return v
		}
	case 'L':
		switch strings.ToUpper(val) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		case "?":
			return nil
		}
	}
	return val
}

// checkDBF fails when the .dbf next to shpPath is missing. go-shp opens it lazily and reports a
// missing table as a layer with no fields.
func checkDBF(shpPath string) error {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	_, err := os.Stat(base + ".dbf")
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return eris.Wrapf(err, "shapefile: stat %s.dbf", base)
	}
	if _, err := os.Stat(base + ".DBF"); err == nil {
		return eris.Errorf("shapefile: %s.DBF must be named %s.dbf", base, filepath.Base(base))
	}
	return eris.Errorf("shapefile: %s has no .dbf", shpPath)
}

func readPRJ(shpPath string) (string, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", eris.Wrapf(err, "shapefile: read %s", base+ext)
		}
	}
	return "", nil
}

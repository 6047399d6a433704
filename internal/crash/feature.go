package crash

import (
	"encoding/json"
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sdbikes/overlays/internal/overlay"
)

// Feature property names. Source column names are kept so the map styles keep working.
const (
	PropCaseID   = ColCaseID
	PropDate     = ColDate
	PropSeverity = ColSeverity
	PropAge      = ColAge
	PropRole     = ColRole
)

// Features converts joined rows to point features. The raw coordinate columns become the
// geometry; rows without a victim carry null victim properties, and crashes without
// coordinates carry a null geometry.
func Features(rows []Joined) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(rows))
	for _, row := range rows {
		out = append(out, feature(row))
	}
	return out
}

func feature(row Joined) *geojson.Feature {
	c := row.Crash
	props := map[string]any{
		PropCaseID:   numberOrString(c.CaseID),
		PropDate:     stringOrNil(c.Date),
		PropSeverity: numberOrString(c.Severity),
		PropAge:      nil,
		PropRole:     nil,
	}
	if row.Victim != nil {
		props[PropAge] = row.Victim.Age
		props[PropRole] = row.Victim.Role.Label()
	}

	f := &geojson.Feature{Properties: props}
	if c.HasLocation() {
		f.Geometry = geom.NewPointFlat(geom.XY, []float64{*c.X, *c.Y}).SetSRID(overlay.SRIDWGS84)
	}
	return f
}

// numberOrString emits canonical integers as JSON numbers, matching how the source table types
// them, and anything else as a string.
func numberOrString(s string) any {
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(v, 10) == s {
		return json.Number(s)
	}
	return s
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

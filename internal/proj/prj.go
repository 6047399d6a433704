package proj

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	authorityRe = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)
	nameRe      = regexp.MustCompile(`^\s*(PROJCS|GEOGCS)\[\s*"([^"]*)"`)
)

// esriNames maps normalized ESRI coordinate system names, as written to shapefile .prj files,
// to EPSG codes.
var esriNames = map[string]int{
	"gcs_wgs_1984":                                           WGS84,
	"wgs_84":                                                 WGS84,
	"gcs_north_american_1983":                                NAD83,
	"nad83":                                                  NAD83,
	"us_national_atlas_equal_area":                           USNationalAtlasEA,
	"us_national_atlas_equal-area":                           USNationalAtlasEA,
	"nad_1983_stateplane_california_vi_fips_0406_feet":       CaliforniaVIFeet,
	"nad83_/_california_zone_6_(ftus)":                       CaliforniaVIFeet,
	"nad_1983_stateplane_texas_north_central_fips_4202_feet": TexasNCFeet,
	"nad83_/_texas_north_central_(ftus)":                     TexasNCFeet,
}

// FromPRJ identifies the projection described by the WKT content of a shapefile .prj file.
// An EPSG authority on the outermost node wins; otherwise the coordinate system name is matched
// against known ESRI names.
func FromPRJ(wkt string) (Projection, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return nil, eris.New("proj: empty .prj")
	}

	if m := authorityRe.FindStringSubmatch(wkt); m != nil {
		code, err := strconv.Atoi(m[1])
		if err == nil {
			if p, ok := registry[code]; ok {
				return p, nil
			}
		}
	}

	m := nameRe.FindStringSubmatch(wkt)
	if m == nil {
		return nil, eris.New("proj: .prj is not a PROJCS or GEOGCS definition")
	}
	name := normalizeName(m[2])
	if code, ok := esriNames[name]; ok {
		return registry[code], nil
	}

	return nil, eris.Errorf("proj: unrecognized coordinate system %q", m[2])
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

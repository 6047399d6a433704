// Package proj converts coordinates between the handful of coordinate reference systems the
// overlay pipelines touch: geographic NAD83/WGS84, the US National Atlas equal-area projection
// used for simplification, and the NAD83 state plane zones civic shapefiles ship in.
//
// NAD83 and WGS84 are treated as the same datum; the difference is well under the
// simplification tolerances used here.
package proj

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// EPSG codes with built-in support.
const (
	WGS84             = 4326
	NAD83             = 4269
	USNationalAtlasEA = 2163
	CaliforniaVIFeet  = 2230
	TexasNCFeet       = 2276
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi

	// GRS80 ellipsoid, shared by NAD83 and (to this precision) WGS84.
	grs80A  = 6378137.0
	grs80E2 = 0.00669438002290

	// Clarke 1866 authalic sphere radius used by EPSG:2163.
	authalicRadius = 6370997.0

	// US survey feet per metre.
	ftUSPerMeter = 3937.0 / 1200.0
)

// Projection maps geographic longitude/latitude in degrees to planar coordinates and back.
type Projection interface {
	EPSG() int
	Name() string
	Forward(lon, lat float64) (x, y float64)
	Inverse(x, y float64) (lon, lat float64)
}

var registry = map[int]Projection{
	WGS84: geographic{epsg: WGS84, name: "WGS 84"},
	NAD83: geographic{epsg: NAD83, name: "NAD83"},
	USNationalAtlasEA: newLAEA(USNationalAtlasEA, "US National Atlas Equal Area",
		authalicRadius, 45, -100),
	CaliforniaVIFeet: newLCC(CaliforniaVIFeet, "NAD83 / California zone 6 (ftUS)", lccParams{
		lat1: 33 + 53.0/60, lat2: 32 + 47.0/60, lat0: 32 + 10.0/60, lon0: -116.25,
		falseEasting: 2000000 * ftUSPerMeter, falseNorthing: 500000 * ftUSPerMeter,
		unitsPerMeter: ftUSPerMeter,
	}),
	TexasNCFeet: newLCC(TexasNCFeet, "NAD83 / Texas North Central (ftUS)", lccParams{
		lat1: 33 + 58.0/60, lat2: 32 + 8.0/60, lat0: 31 + 40.0/60, lon0: -98.5,
		falseEasting: 600000 * ftUSPerMeter, falseNorthing: 2000000 * ftUSPerMeter,
		unitsPerMeter: ftUSPerMeter,
	}),
}

// Lookup returns the projection registered for an EPSG code.
func Lookup(epsg int) (Projection, error) {
	p, ok := registry[epsg]
	if !ok {
		return nil, eris.Errorf("proj: unsupported EPSG:%d (supported: %v)", epsg, Supported())
	}
	return p, nil
}

// Supported lists the registered EPSG codes in ascending order.
func Supported() []int {
	codes := make([]int, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// geographic is a pass-through for longitude/latitude systems.
type geographic struct {
	epsg int
	name string
}

func (g geographic) EPSG() int    { return g.epsg }
func (g geographic) Name() string { return g.name }

func (g geographic) Forward(lon, lat float64) (float64, float64) {
	return lon, lat
}

func (g geographic) Inverse(x, y float64) (float64, float64) {
	return x, y
}

// laea is the spherical Lambert azimuthal equal-area projection.
type laea struct {
	epsg    int
	name    string
	r       float64
	sinPhi1 float64
	cosPhi1 float64
	lambda0 float64
}

func newLAEA(epsg int, name string, radius, lat0, lon0 float64) laea {
	phi1 := lat0 * deg2rad
	return laea{
		epsg:    epsg,
		name:    name,
		r:       radius,
		sinPhi1: math.Sin(phi1),
		cosPhi1: math.Cos(phi1),
		lambda0: lon0 * deg2rad,
	}
}

func (p laea) EPSG() int    { return p.epsg }
func (p laea) Name() string { return p.name }

func (p laea) Forward(lon, lat float64) (float64, float64) {
	phi := lat * deg2rad
	dl := lon*deg2rad - p.lambda0
	sinPhi, cosPhi := math.Sincos(phi)
	cosDl := math.Cos(dl)

	k := math.Sqrt(2 / (1 + p.sinPhi1*sinPhi + p.cosPhi1*cosPhi*cosDl))
	x := p.r * k * cosPhi * math.Sin(dl)
	y := p.r * k * (p.cosPhi1*sinPhi - p.sinPhi1*cosPhi*cosDl)
	return x, y
}

func (p laea) Inverse(x, y float64) (float64, float64) {
	rho := math.Hypot(x, y)
	if rho == 0 {
		return p.lambda0 * rad2deg, math.Asin(p.sinPhi1) * rad2deg
	}
	c := 2 * math.Asin(rho/(2*p.r))
	sinC, cosC := math.Sincos(c)

	phi := math.Asin(cosC*p.sinPhi1 + y*sinC*p.cosPhi1/rho)
	lambda := p.lambda0 + math.Atan2(x*sinC, rho*p.cosPhi1*cosC-y*p.sinPhi1*sinC)
	return lambda * rad2deg, phi * rad2deg
}

type lccParams struct {
	lat1, lat2, lat0, lon0      float64
	falseEasting, falseNorthing float64
	unitsPerMeter               float64
}

// lcc is the ellipsoidal Lambert conformal conic projection with two standard parallels.
type lcc struct {
	epsg    int
	name    string
	e       float64
	aF      float64
	n       float64
	rho0    float64
	lambda0 float64
	x0, y0  float64
}

func newLCC(epsg int, name string, p lccParams) lcc {
	e := math.Sqrt(grs80E2)
	m := func(phi float64) float64 {
		s := math.Sin(phi)
		return math.Cos(phi) / math.Sqrt(1-grs80E2*s*s)
	}
	t := lcc{e: e}.t

	phi1, phi2, phi0 := p.lat1*deg2rad, p.lat2*deg2rad, p.lat0*deg2rad
	m1, m2 := m(phi1), m(phi2)
	t1, t2, t0 := t(phi1), t(phi2), t(phi0)

	n := math.Log(m1/m2) / math.Log(t1/t2)
	aF := grs80A * p.unitsPerMeter * m1 / (n * math.Pow(t1, n))

	return lcc{
		epsg:    epsg,
		name:    name,
		e:       e,
		aF:      aF,
		n:       n,
		rho0:    aF * math.Pow(t0, n),
		lambda0: p.lon0 * deg2rad,
		x0:      p.falseEasting,
		y0:      p.falseNorthing,
	}
}

func (p lcc) EPSG() int    { return p.epsg }
func (p lcc) Name() string { return p.name }

func (p lcc) t(phi float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-p.e*s)/(1+p.e*s), p.e/2)
}

func (p lcc) Forward(lon, lat float64) (float64, float64) {
	rho := p.aF * math.Pow(p.t(lat*deg2rad), p.n)
	theta := p.n * (lon*deg2rad - p.lambda0)
	return p.x0 + rho*math.Sin(theta), p.y0 + p.rho0 - rho*math.Cos(theta)
}

func (p lcc) Inverse(x, y float64) (float64, float64) {
	dx := x - p.x0
	dy := p.rho0 - (y - p.y0)
	sign := 1.0
	if p.n < 0 {
		sign = -1
	}
	rho := sign * math.Hypot(dx, dy)
	theta := math.Atan2(sign*dx, sign*dy)
	t := math.Pow(rho/p.aF, 1/p.n)

	phi := math.Pi/2 - 2*math.Atan(t)
	for range 15 {
		s := math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-p.e*s)/(1+p.e*s), p.e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}

	return (theta/p.n + p.lambda0) * rad2deg, phi * rad2deg
}

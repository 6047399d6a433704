// Package crash joins TIMS crash records with their pedestrian and bicyclist victims and renders
// the result as a point overlay.
package crash

// Role is a TIMS victim role code.
type Role int

// Victim roles that mark a crash as involving someone outside a vehicle. All other role codes
// (driver, passenger, parked vehicle, ...) are discarded.
const (
	RolePedestrian Role = 3
	RoleBicyclist  Role = 4
)

// Qualifying reports whether the role is one the overlay keeps.
func (r Role) Qualifying() bool {
	return r == RolePedestrian || r == RoleBicyclist
}

// Label returns the human-readable role name, or "" for roles the overlay does not keep.
func (r Role) Label() string {
	switch r {
	case RolePedestrian:
		return "pedestrian"
	case RoleBicyclist:
		return "bicyclist"
	default:
		return ""
	}
}

// Crash is one row of the TIMS crashes table, narrowed to the fields shown on the map.
type Crash struct {
	CaseID   string
	Date     string
	Severity string
	// X and Y are longitude and latitude in WGS84. Nil when the source left them blank.
	X *float64
	Y *float64
}

// HasLocation reports whether both coordinates are present.
func (c Crash) HasLocation() bool {
	return c.X != nil && c.Y != nil
}

// Victim is one row of the TIMS victims table, narrowed to the fields shown on the map.
type Victim struct {
	CaseID string
	Age    int
	Role   Role
}

// Joined is a crash with its zero-or-one selected victim.
type Joined struct {
	Crash  Crash
	Victim *Victim
}

// TiePolicy decides what happens when several victims of one crash share the minimum age.
type TiePolicy int

const (
	// TieFirst keeps the first tied victim in source order, so every crash yields one row.
	TieFirst TiePolicy = iota
	// TieAll keeps every tied victim; the join then emits one row per kept victim.
	TieAll
)

func (p TiePolicy) String() string {
	if p == TieAll {
		return "all"
	}
	return "first"
}

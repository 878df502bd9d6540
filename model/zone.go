package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/riderunner/geo"
)

var (
	// ErrTooFewPoints rejects zones drawn with fewer than three vertices.
	ErrTooFewPoints = errors.New("invalid zone: please create a zone with at least 3 points")
	// ErrZoneTooSmall rejects zones whose area is below the configured minimum.
	ErrZoneTooSmall = errors.New("zone too small: please create a larger zone for better gameplay")
)

// Zone is the player-drawn play area. It is immutable once created.
type Zone struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Coordinates []geo.Coordinate `json:"coordinates"`
	Created     time.Time        `json:"created"`
}

// NewZone validates the drawn points and builds a zone. An empty name gets
// the default "Custom Zone <date>" label.
func NewZone(name string, coords []geo.Coordinate, minAreaKm2 float64, now time.Time) (Zone, error) {
	if len(coords) < 3 {
		return Zone{}, ErrTooFewPoints
	}
	for i, c := range coords {
		if !c.Valid() {
			return Zone{}, fmt.Errorf("invalid zone: vertex %d %v is out of range", i, c)
		}
	}
	z := Zone{
		ID:          uuid.NewString(),
		Name:        name,
		Coordinates: append([]geo.Coordinate(nil), coords...),
		Created:     now,
	}
	if z.Name == "" {
		z.Name = DefaultZoneName(now)
	}
	if z.AreaKm2() < minAreaKm2 {
		return Zone{}, ErrZoneTooSmall
	}
	return z, nil
}

// DefaultZoneName labels a zone by its creation date.
func DefaultZoneName(t time.Time) string {
	return "Custom Zone " + t.Format("1/2/06")
}

// Polygon returns the zone outline.
func (z Zone) Polygon() geo.Polygon {
	return geo.Polygon(z.Coordinates)
}

// AreaKm2 is the shoelace area of the zone in square kilometres.
func (z Zone) AreaKm2() float64 {
	return z.Polygon().AreaKm2()
}

// InitialRiderCount is the rider population the zone should carry:
// one rider per areaPerRider square metres, and never fewer than one.
func (z Zone) InitialRiderCount(areaPerRider float64) int {
	if areaPerRider <= 0 {
		return 1
	}
	count := int(z.AreaKm2() * 1_000_000 / areaPerRider)
	return max(1, count)
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/riderunner/geo"
)

// DefaultRiderLifetime is how long a rider waits before despawning.
const DefaultRiderLifetime = 300 * time.Second

// Rider is a virtual pickup point.
type Rider struct {
	ID          string         `json:"id"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	Tier        Tier           `json:"tier"`
	Spawned     time.Time      `json:"spawned"`
	POIName     string         `json:"poiName,omitempty"`
	POICategory string         `json:"poiCategory,omitempty"`
	Reachable   bool           `json:"reachable"`
}

// NewRider builds a reachable rider with a fresh identity.
func NewRider(c geo.Coordinate, tier Tier, spawned time.Time, poiName, poiCategory string) Rider {
	return Rider{
		ID:          uuid.NewString(),
		Coordinate:  c,
		Tier:        tier,
		Spawned:     spawned,
		POIName:     poiName,
		POICategory: poiCategory,
		Reachable:   true,
	}
}

// Age returns how long the rider has been waiting at now.
func (r Rider) Age(now time.Time) time.Duration {
	return now.Sub(r.Spawned)
}

// ShouldDespawn reports whether the rider has outlived lifetime. A
// non-positive lifetime means DefaultRiderLifetime.
func (r Rider) ShouldDespawn(now time.Time, lifetime time.Duration) bool {
	if lifetime <= 0 {
		lifetime = DefaultRiderLifetime
	}
	return r.Age(now) > lifetime
}

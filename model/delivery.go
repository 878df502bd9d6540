package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/riderunner/geo"
)

// Delivery is a rider being carried to a generated destination.
type Delivery struct {
	ID          string         `json:"id"`
	Rider       Rider          `json:"rider"`
	Destination geo.Coordinate `json:"destination"`
	PickupTime  time.Time      `json:"pickupTime"`
	DropoffTime *time.Time     `json:"dropoffTime,omitempty"`
	Reward      float64        `json:"reward"`
}

// NewDelivery starts a delivery of r towards dest.
func NewDelivery(r Rider, dest geo.Coordinate, pickup time.Time) Delivery {
	return Delivery{
		ID:          uuid.NewString(),
		Rider:       r,
		Destination: dest,
		PickupTime:  pickup,
	}
}

// IsComplete reports whether the rider has been dropped off.
func (d Delivery) IsComplete() bool {
	return d.DropoffTime != nil
}

// TripDistance is the straight-line distance from pickup to destination, in metres.
func (d Delivery) TripDistance() float64 {
	return d.Rider.Coordinate.DistanceTo(d.Destination)
}

// EstimatedTravelTime is the trip distance at avgSpeed (m/s), in seconds.
func (d Delivery) EstimatedTravelTime(avgSpeed float64) float64 {
	if avgSpeed <= 0 {
		return 0
	}
	return d.TripDistance() / avgSpeed
}

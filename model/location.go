package model

import (
	"time"

	"github.com/signalsfoundry/riderunner/geo"
)

// Sample is one position fix from the device.
type Sample struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	// Speed in m/s; negative when the device could not measure it.
	Speed   float64 `json:"speed"`
	Heading float64 `json:"heading"`
	// HorizontalAccuracy is the radius of uncertainty in metres.
	HorizontalAccuracy float64   `json:"horizontalAccuracy"`
	Timestamp          time.Time `json:"timestamp"`
}

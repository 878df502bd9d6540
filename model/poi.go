package model

import "github.com/signalsfoundry/riderunner/geo"

// CuratedPOI is a hand-placed pickup point with a fixed tier.
type CuratedPOI struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Coordinate  geo.Coordinate `json:"coordinate" yaml:"coordinate"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Tier        Tier           `json:"tier" yaml:"tier"`
}

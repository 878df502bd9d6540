package config

import (
	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/model"
)

// FortMasonCatalog is the built-in curated demo set around Fort Mason, San Francisco.
func FortMasonCatalog() []model.CuratedPOI {
	return []model.CuratedPOI{
		{ID: "fm_viewpoint", Name: "Great Meadow Point", Coordinate: geo.Coordinate{Lat: 37.80415, Lon: -122.43090}, Description: "View of Alcatraz", Tier: model.TierHigh},
		{ID: "fm_parking", Name: "Bike Parking Area", Coordinate: geo.Coordinate{Lat: 37.80350, Lon: -122.43120}, Description: "Secure bike parking", Tier: model.TierMedium},
		{ID: "fm_pier", Name: "Pier 3", Coordinate: geo.Coordinate{Lat: 37.80280, Lon: -122.43200}, Description: "Historic pier", Tier: model.TierLow},
		{ID: "fm_entrance", Name: "Main Entrance", Coordinate: geo.Coordinate{Lat: 37.80480, Lon: -122.43050}, Description: "Fort Mason entrance", Tier: model.TierMedium},
		{ID: "fm_museum", Name: "Museum Area", Coordinate: geo.Coordinate{Lat: 37.80420, Lon: -122.43150}, Description: "Cultural exhibits", Tier: model.TierHigh},
	}
}

// FortMasonZone outlines the area covered by FortMasonCatalog.
func FortMasonZone() []geo.Coordinate {
	return []geo.Coordinate{
		{Lat: 37.80250, Lon: -122.43250},
		{Lat: 37.80250, Lon: -122.43000},
		{Lat: 37.80520, Lon: -122.43000},
		{Lat: 37.80520, Lon: -122.43250},
	}
}

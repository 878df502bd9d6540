// Package geo holds the small amount of planar and spherical geometry the
// game needs: distances between coordinates, polygon membership and area,
// and rejection sampling inside a zone.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusM is the mean Earth radius used for great-circle distances (metres).
const EarthRadiusM = 6371008.8

// KmPerDegree approximates the length of one degree of latitude. Zone areas
// treat lat/lon as planar and scale by this factor on both axes.
const KmPerDegree = 111.32

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// String renders the coordinate with six decimals (~0.1 m).
func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lon)
}

// Valid reports whether the coordinate lies within the WGS84 range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DistanceTo returns the haversine distance to other, in metres.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (other.Lon - c.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(a))
}

// Bounds is an axis-aligned lat/lon box.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// BoundsOf returns the smallest box enclosing pts. The zero Bounds is
// returned for an empty slice.
func BoundsOf(pts []Coordinate) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	b := Bounds{MinLat: pts[0].Lat, MaxLat: pts[0].Lat, MinLon: pts[0].Lon, MaxLon: pts[0].Lon}
	for _, p := range pts[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return Coordinate{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Diagonal returns the distance between the south-west and north-east corners, in metres.
func (b Bounds) Diagonal() float64 {
	return Coordinate{Lat: b.MinLat, Lon: b.MinLon}.DistanceTo(Coordinate{Lat: b.MaxLat, Lon: b.MaxLon})
}

// Contains reports whether c lies inside the box (edges inclusive).
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

package geo

import "math"

// Polygon is a simple closed ring of coordinates. The closing edge from the
// last vertex back to the first is implicit.
type Polygon []Coordinate

// IsEmpty returns true if the polygon has fewer than 3 vertices.
func (p Polygon) IsEmpty() bool {
	return len(p) < 3
}

// Bounds returns the bounding box of the polygon.
func (p Polygon) Bounds() Bounds {
	return BoundsOf(p)
}

// Contains reports whether c lies inside the polygon, using even-odd ray
// casting with longitude as X and latitude as Y.
func (p Polygon) Contains(c Coordinate) bool {
	n := len(p)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := p[i], p[j]
		if (vi.Lat > c.Lat) != (vj.Lat > c.Lat) &&
			c.Lon < (vj.Lon-vi.Lon)*(c.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lon {
			inside = !inside
		}
		j = i
	}
	return inside
}

// SignedAreaDeg2 returns the shoelace area in square degrees. Positive for
// counter-clockwise winding when longitude is X.
func (p Polygon) SignedAreaDeg2() float64 {
	n := len(p)
	if n < 3 {
		return 0
	}
	area := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += p[i].Lon * p[j].Lat
		area -= p[j].Lon * p[i].Lat
	}
	return area / 2
}

// AreaKm2 returns the polygon area with lat/lon treated as planar and scaled
// by KmPerDegree on both axes.
func (p Polygon) AreaKm2() float64 {
	return math.Abs(p.SignedAreaDeg2()) * KmPerDegree * KmPerDegree
}

// Centroid returns the area-weighted centroid. Degenerate (zero-area)
// polygons fall back to the vertex average.
func (p Polygon) Centroid() Coordinate {
	n := len(p)
	if n == 0 {
		return Coordinate{}
	}
	a := p.SignedAreaDeg2()
	if math.Abs(a) < 1e-15 {
		var sum Coordinate
		for _, v := range p {
			sum.Lat += v.Lat
			sum.Lon += v.Lon
		}
		return Coordinate{Lat: sum.Lat / float64(n), Lon: sum.Lon / float64(n)}
	}
	var cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := p[i].Lon*p[j].Lat - p[j].Lon*p[i].Lat
		cx += (p[i].Lon + p[j].Lon) * cross
		cy += (p[i].Lat + p[j].Lat) * cross
	}
	f := 1 / (6 * a)
	return Coordinate{Lat: cy * f, Lon: cx * f}
}

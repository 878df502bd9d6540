package geo

import (
	"math"
	"testing"
)

func square(minLat, minLon, size float64) Polygon {
	return Polygon{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon},
	}
}

func TestDistanceToOneMilliDegreeLatitude(t *testing.T) {
	a := Coordinate{Lat: 37.8040, Lon: -122.4310}
	b := Coordinate{Lat: 37.8050, Lon: -122.4310}

	got := a.DistanceTo(b)
	if math.Abs(got-111.195) > 0.5 {
		t.Fatalf("DistanceTo = %.3f m, want ~111.195 m", got)
	}
	if back := b.DistanceTo(a); math.Abs(back-got) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", got, back)
	}
	if self := a.DistanceTo(a); self != 0 {
		t.Fatalf("self distance = %v, want 0", self)
	}
}

func TestPolygonContains(t *testing.T) {
	poly := square(37.803, -122.432, 0.002)

	cases := []struct {
		name string
		c    Coordinate
		want bool
	}{
		{"center", Coordinate{Lat: 37.804, Lon: -122.431}, true},
		{"north of box", Coordinate{Lat: 37.806, Lon: -122.431}, false},
		{"west of box", Coordinate{Lat: 37.804, Lon: -122.433}, false},
		{"near corner inside", Coordinate{Lat: 37.80301, Lon: -122.43199}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := poly.Contains(tc.c); got != tc.want {
				t.Fatalf("Contains(%v) = %v, want %v", tc.c, got, tc.want)
			}
		})
	}

	if (Polygon{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}).Contains(Coordinate{}) {
		t.Fatalf("two-vertex polygon should contain nothing")
	}
}

func TestPolygonContainsConcave(t *testing.T) {
	// L-shape: the notch at the top right is outside.
	poly := Polygon{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 2},
		{Lat: 1, Lon: 2},
		{Lat: 1, Lon: 1},
		{Lat: 2, Lon: 1},
		{Lat: 2, Lon: 0},
	}
	if !poly.Contains(Coordinate{Lat: 0.5, Lon: 1.5}) {
		t.Fatalf("expected lower arm to be inside")
	}
	if poly.Contains(Coordinate{Lat: 1.5, Lon: 1.5}) {
		t.Fatalf("expected notch to be outside")
	}
}

func TestPolygonAreaKm2(t *testing.T) {
	poly := square(37.803, -122.432, 0.002)
	want := 0.002 * 0.002 * KmPerDegree * KmPerDegree

	if got := poly.AreaKm2(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("AreaKm2 = %v, want %v", got, want)
	}

	reversed := Polygon{poly[3], poly[2], poly[1], poly[0]}
	if got := reversed.AreaKm2(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("clockwise AreaKm2 = %v, want %v", got, want)
	}
	if got := (Polygon{{}, {Lat: 1}}).AreaKm2(); got != 0 {
		t.Fatalf("degenerate AreaKm2 = %v, want 0", got)
	}
}

func TestPolygonCentroid(t *testing.T) {
	poly := square(37.803, -122.432, 0.002)
	c := poly.Centroid()
	if math.Abs(c.Lat-37.804) > 1e-9 || math.Abs(c.Lon-(-122.431)) > 1e-9 {
		t.Fatalf("Centroid = %v, want (37.804, -122.431)", c)
	}

	line := Polygon{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	if got := line.Centroid(); got.Lat != 1 || got.Lon != 1 {
		t.Fatalf("collinear Centroid = %v, want vertex average (1, 1)", got)
	}
}

func TestBounds(t *testing.T) {
	poly := square(37.803, -122.432, 0.002)
	b := poly.Bounds()
	if b.MinLat != 37.803 || b.MaxLon != -122.430 {
		t.Fatalf("unexpected bounds %+v", b)
	}
	if !b.Contains(b.Center()) {
		t.Fatalf("bounds should contain its own center")
	}
	if d := b.Diagonal(); d < 250 || d > 300 {
		t.Fatalf("Diagonal = %.1f m, want ~280 m", d)
	}
}

func TestRandomPointInStaysInside(t *testing.T) {
	poly := Polygon{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 2},
		{Lat: 1, Lon: 2},
		{Lat: 1, Lon: 1},
		{Lat: 2, Lon: 1},
		{Lat: 2, Lon: 0},
	}
	r := NewRand(7)
	for i := 0; i < 500; i++ {
		c, ok := RandomPointIn(poly, r, 1000)
		if !ok {
			t.Fatalf("sample %d: no point found", i)
		}
		if !poly.Contains(c) {
			t.Fatalf("sample %d: %v outside polygon", i, c)
		}
	}
}

func TestRandomPointInGivesUp(t *testing.T) {
	// A sliver whose bounding box is almost entirely outside the polygon.
	sliver := Polygon{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 1.0000001}}
	if _, ok := RandomPointIn(sliver, NewRand(3), 5); ok {
		t.Fatalf("expected sampling to give up on a sliver polygon")
	}
	if _, ok := RandomPointIn(nil, NewRand(3), 5); ok {
		t.Fatalf("expected empty polygon to fail")
	}
}

func TestRandSeedIsReproducible(t *testing.T) {
	a, b := NewRand(42), NewRand(42)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("draw %d differs for equal seeds", i)
		}
	}
}

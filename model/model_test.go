package model

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/riderunner/geo"
)

var epoch = time.Date(2025, time.June, 14, 9, 0, 0, 0, time.UTC)

func squareCoords(minLat, minLon, size float64) []geo.Coordinate {
	return []geo.Coordinate{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon},
	}
}

func TestInitialRiderCountScenario(t *testing.T) {
	// Side chosen so the zone covers 0.01 km^2.
	side := 0.1 / geo.KmPerDegree
	z, err := NewZone("meadow", squareCoords(37.80, -122.43, side), 0.001, epoch)
	if err != nil {
		t.Fatalf("NewZone: %v", err)
	}
	if math.Abs(z.AreaKm2()-0.01) > 1e-9 {
		t.Fatalf("AreaKm2 = %v, want 0.01", z.AreaKm2())
	}
	if got := z.InitialRiderCount(150); got != 66 {
		t.Fatalf("InitialRiderCount = %d, want 66", got)
	}
}

func TestInitialRiderCountNeverBelowOne(t *testing.T) {
	side := 0.0005
	z, err := NewZone("tiny", squareCoords(37.80, -122.43, side), 0.001, epoch)
	if err != nil {
		t.Fatalf("NewZone: %v", err)
	}
	if got := z.InitialRiderCount(1e9); got != 1 {
		t.Fatalf("InitialRiderCount = %d, want 1", got)
	}
	if got := z.InitialRiderCount(0); got != 1 {
		t.Fatalf("InitialRiderCount(0) = %d, want 1", got)
	}
}

func TestNewZoneValidation(t *testing.T) {
	if _, err := NewZone("", squareCoords(37.8, -122.4, 0.01)[:2], 0.001, epoch); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("two points: err = %v, want ErrTooFewPoints", err)
	}
	if _, err := NewZone("", squareCoords(37.8, -122.4, 0.0001), 0.001, epoch); !errors.Is(err, ErrZoneTooSmall) {
		t.Fatalf("tiny zone: err = %v, want ErrZoneTooSmall", err)
	}
	bad := squareCoords(37.8, -122.4, 0.01)
	bad[1].Lat = 123
	if _, err := NewZone("", bad, 0.001, epoch); err == nil {
		t.Fatalf("expected out-of-range vertex to be rejected")
	}

	z, err := NewZone("", squareCoords(37.8, -122.4, 0.01), 0.001, epoch)
	if err != nil {
		t.Fatalf("NewZone: %v", err)
	}
	if z.Name != "Custom Zone 6/14/25" {
		t.Fatalf("default name = %q", z.Name)
	}
	if z.ID == "" {
		t.Fatalf("zone has no ID")
	}
}

func TestTierAttributes(t *testing.T) {
	cases := []struct {
		tier       Tier
		multiplier float64
		pulses     bool
		color      string
		blindColor string
	}{
		{TierHigh, 1.5, true, "green", "blue"},
		{TierMedium, 1.0, false, "yellow", "purple"},
		{TierLow, 0.75, false, "orange", "brown"},
	}
	rewards := TierRewards{High: 30, Medium: 20, Low: 10}
	for _, tc := range cases {
		if got := tc.tier.Multiplier(); got != tc.multiplier {
			t.Errorf("%s multiplier = %v, want %v", tc.tier, got, tc.multiplier)
		}
		if got := tc.tier.Pulses(); got != tc.pulses {
			t.Errorf("%s pulses = %v", tc.tier, got)
		}
		if got := tc.tier.Visual(false).Color; got != tc.color {
			t.Errorf("%s color = %q, want %q", tc.tier, got, tc.color)
		}
		if got := tc.tier.Visual(true).Color; got != tc.blindColor {
			t.Errorf("%s colour-blind color = %q, want %q", tc.tier, got, tc.blindColor)
		}
	}
	if rewards.For(TierMedium) != 20 || rewards.For(TierLow) != 10 || rewards.For(TierHigh) != 30 {
		t.Fatalf("TierRewards.For mismatch")
	}
}

func TestParseTierAliases(t *testing.T) {
	for in, want := range map[string]Tier{"HIGH": TierHigh, "green": TierHigh, "yellow": TierMedium, " low ": TierLow} {
		got, err := ParseTier(in)
		if err != nil || got != want {
			t.Fatalf("ParseTier(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTier("purple"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestTierDrawConverges(t *testing.T) {
	chances := TierChances{High: 0.2, Medium: 0.35}
	r := geo.NewRand(99)
	const n = 200_000
	counts := map[Tier]int{}
	for i := 0; i < n; i++ {
		counts[chances.Draw(r)]++
	}
	want := map[Tier]float64{TierHigh: 0.2, TierMedium: 0.35, TierLow: 0.45}
	for tier, p := range want {
		got := float64(counts[tier]) / n
		if math.Abs(got-p) > 0.01 {
			t.Errorf("%s frequency = %.4f, want %.2f±0.01", tier, got, p)
		}
	}
}

func TestRiderDespawn(t *testing.T) {
	r := NewRider(geo.Coordinate{Lat: 1, Lon: 1}, TierLow, epoch, "", "random")
	if r.ShouldDespawn(epoch.Add(300*time.Second), 0) {
		t.Fatalf("rider at exactly 300s should not despawn yet")
	}
	if !r.ShouldDespawn(epoch.Add(301*time.Second), 0) {
		t.Fatalf("rider older than 300s should despawn")
	}
	if !r.ShouldDespawn(epoch.Add(11*time.Second), 10*time.Second) {
		t.Fatalf("custom lifetime not honoured")
	}
	if !r.Reachable {
		t.Fatalf("new riders are reachable")
	}
}

func TestDeliveryDerivedValues(t *testing.T) {
	r := NewRider(geo.Coordinate{Lat: 37.8040, Lon: -122.431}, TierHigh, epoch, "", "")
	d := NewDelivery(r, geo.Coordinate{Lat: 37.8050, Lon: -122.431}, epoch)
	if d.IsComplete() {
		t.Fatalf("new delivery should be incomplete")
	}
	if got := d.EstimatedTravelTime(4.5); math.Abs(got-d.TripDistance()/4.5) > 1e-9 {
		t.Fatalf("EstimatedTravelTime = %v", got)
	}
	if d.EstimatedTravelTime(0) != 0 {
		t.Fatalf("zero speed should yield zero travel time")
	}
}

func TestSessionCloneIsIndependent(t *testing.T) {
	z, _ := NewZone("z", squareCoords(37.8, -122.4, 0.01), 0.001, epoch)
	s := NewSession(z, epoch)
	drop := epoch.Add(time.Minute)
	d := NewDelivery(NewRider(geo.Coordinate{}, TierLow, epoch, "", ""), geo.Coordinate{}, epoch)
	d.DropoffTime = &drop
	s.Deliveries = append(s.Deliveries, d)

	c := s.Clone()
	*c.Deliveries[0].DropoffTime = epoch
	c.Zone.Coordinates[0].Lat = 0
	if !s.Deliveries[0].DropoffTime.Equal(drop) {
		t.Fatalf("clone shares dropoff pointer")
	}
	if s.Zone.Coordinates[0].Lat == 0 {
		t.Fatalf("clone shares zone coordinates")
	}
	if !s.IsActive() || s.Duration(epoch.Add(time.Minute)) != time.Minute {
		t.Fatalf("unexpected session activity/duration")
	}
}

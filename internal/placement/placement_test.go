package placement

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/config"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/poi"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
)

var (
	zoneCenter = geo.Coordinate{Lat: 37.80385, Lon: -122.43125}
	nearCenter = geo.Coordinate{Lat: 37.80445, Lon: -122.43125}
)

func fortMason(t *testing.T) model.Zone {
	t.Helper()
	z, err := model.NewZone("Fort Mason", config.FortMasonZone(), 0.001, time.Now())
	if err != nil {
		t.Fatalf("NewZone: %v", err)
	}
	return z
}

func testEnv(t *testing.T) (Env, *timectrl.ManualClock) {
	t.Helper()
	clock := timectrl.NewManualClock(time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC))
	cfg := config.Default()
	return EnvFromConfig(fortMason(t), cfg, nil, geo.NewRand(7), clock, nil), clock
}

type countingSearcher struct {
	mu    sync.Mutex
	calls int
	inner poi.Searcher
	fail  map[poi.Category]error
}

func (c *countingSearcher) Search(ctx context.Context, region geo.Bounds, category poi.Category) ([]poi.Place, error) {
	c.mu.Lock()
	c.calls++
	err := c.fail[category]
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.inner.Search(ctx, region, category)
}

func (c *countingSearcher) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testPlaces() poi.Static {
	return poi.Static{Places: []poi.Place{
		{Name: "Meadow Viewpoint", Category: poi.Viewpoint, Coordinate: zoneCenter},
		{Name: "Upper Lawn", Category: poi.Park, Coordinate: nearCenter},
		{Name: "Alcatraz View", Category: poi.Viewpoint, Coordinate: geo.Coordinate{Lat: 37.9, Lon: -122.43}},
	}}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"random":   ModeRandom,
		"RANDOM":   ModeRandom,
		" Curated": ModeCurated,
		"smart":    ModeSmart,
		"":         ModeSmart,
		"bogus":    ModeSmart,
	}
	for in, want := range cases {
		if got := ParseMode(in); got != want {
			t.Fatalf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFactoryBuildsEachMode(t *testing.T) {
	env, _ := testEnv(t)
	for _, m := range []Mode{ModeRandom, ModeCurated, ModeSmart} {
		if got := New(m, env).Mode(); got != m {
			t.Fatalf("New(%q).Mode() = %q", m, got)
		}
	}
}

func TestRandomPlacesInsideZoneAwayFromPlayer(t *testing.T) {
	env, clock := testEnv(t)
	r := NewRandom(env)
	poly := env.Zone.Polygon()

	riders := r.SelectRiders(context.Background(), Request{Count: 40, Near: &zoneCenter})
	if len(riders) != 40 {
		t.Fatalf("got %d riders, want 40", len(riders))
	}
	ids := make(map[string]bool)
	for _, rd := range riders {
		if !poly.Contains(rd.Coordinate) {
			t.Fatalf("rider %v outside zone", rd.Coordinate)
		}
		if d := zoneCenter.DistanceTo(rd.Coordinate); d < env.MinPlayerDistance {
			t.Fatalf("rider %.1fm from player, want >= %.2f", d, env.MinPlayerDistance)
		}
		if rd.POICategory != "random" || !rd.Reachable || !rd.Spawned.Equal(clock.Now()) {
			t.Fatalf("unexpected rider fields: %+v", rd)
		}
		if ids[rd.ID] {
			t.Fatalf("duplicate rider id %s", rd.ID)
		}
		ids[rd.ID] = true
	}

	if got := r.SelectRiders(context.Background(), Request{Count: 0}); len(got) != 0 {
		t.Fatalf("zero count returned %d riders", len(got))
	}
}

func TestRandomFallsBackToBoxCenterForDegenerateZone(t *testing.T) {
	env, _ := testEnv(t)
	// A collinear "polygon" has no interior, so every draw is rejected.
	env.Zone = model.Zone{Coordinates: []geo.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 0, Lon: 2}}}
	riders := NewRandom(env).SelectRiders(context.Background(), Request{Count: 2})
	want := geo.Coordinate{Lat: 0, Lon: 1}
	for _, rd := range riders {
		if rd.Coordinate != want {
			t.Fatalf("fallback coordinate = %v, want %v", rd.Coordinate, want)
		}
	}
}

func TestCuratedCyclesCatalogAndSkipsNearbyPoints(t *testing.T) {
	env, _ := testEnv(t)
	c := NewCurated(env)
	player := env.Catalog[0].Coordinate

	riders := c.SelectRiders(context.Background(), Request{Count: 12, Near: &player})
	if len(riders) != 12 {
		t.Fatalf("got %d riders, want 12", len(riders))
	}
	byName := make(map[string]model.CuratedPOI)
	for _, p := range env.Catalog {
		byName[p.Name] = p
	}
	seen := make(map[string]int)
	for _, rd := range riders {
		p, ok := byName[rd.POIName]
		if !ok {
			t.Fatalf("rider name %q not in catalog", rd.POIName)
		}
		if rd.Coordinate != p.Coordinate || rd.Tier != p.Tier || rd.POICategory != "curated" {
			t.Fatalf("rider %+v does not match catalog entry %+v", rd, p)
		}
		seen[rd.POIName]++
	}
	if seen[env.Catalog[0].Name] != 0 {
		t.Fatalf("point next to the player was used")
	}
	if len(seen) != 4 {
		t.Fatalf("used %d distinct points, want 4", len(seen))
	}
	for name, n := range seen {
		if n != 3 {
			t.Fatalf("%q used %d times, want 3 (cycled)", name, n)
		}
	}
}

func TestCuratedFallsBackToRandom(t *testing.T) {
	env, _ := testEnv(t)
	env.Catalog = []model.CuratedPOI{{Name: "Elsewhere", Coordinate: geo.Coordinate{Lat: 10, Lon: 10}, Tier: model.TierHigh}}
	riders := NewCurated(env).SelectRiders(context.Background(), Request{Count: 3})
	if len(riders) != 3 {
		t.Fatalf("got %d riders, want 3", len(riders))
	}
	for _, rd := range riders {
		if rd.POICategory != "random" {
			t.Fatalf("expected random fallback, got %+v", rd)
		}
	}
}

func TestSmartRanksAndFillsWithRandom(t *testing.T) {
	env, _ := testEnv(t)
	searcher := &countingSearcher{inner: testPlaces()}
	env.Searcher = searcher
	s := NewSmart(env)

	riders := s.SelectRiders(context.Background(), Request{Count: 4})
	if len(riders) != 4 {
		t.Fatalf("got %d riders, want 4", len(riders))
	}
	if riders[0].POIName != "Meadow Viewpoint" || riders[0].Tier != model.TierHigh || riders[0].POICategory != "viewpoint" {
		t.Fatalf("best rider = %+v", riders[0])
	}
	if riders[1].POIName != "Upper Lawn" {
		t.Fatalf("second rider = %+v", riders[1])
	}
	for _, rd := range riders[2:] {
		if rd.POICategory != "random" {
			t.Fatalf("shortfall should be random, got %+v", rd)
		}
	}
	if searcher.Calls() != len(poi.Categories) {
		t.Fatalf("searcher called %d times, want %d", searcher.Calls(), len(poi.Categories))
	}
}

func TestSmartCachesUntilTTLExpires(t *testing.T) {
	env, clock := testEnv(t)
	searcher := &countingSearcher{inner: testPlaces()}
	env.Searcher = searcher
	s := NewSmart(env)

	s.SelectRiders(context.Background(), Request{Count: 1})
	clock.Advance(23 * time.Hour)
	s.SelectRiders(context.Background(), Request{Count: 1})
	if got := searcher.Calls(); got != len(poi.Categories) {
		t.Fatalf("cached lookup hit the searcher: %d calls", got)
	}
	clock.Advance(2 * time.Hour)
	s.SelectRiders(context.Background(), Request{Count: 1})
	if got := searcher.Calls(); got != 2*len(poi.Categories) {
		t.Fatalf("expired cache not refreshed: %d calls", got)
	}
}

func TestSmartRebuildReusesZoneCache(t *testing.T) {
	env, _ := testEnv(t)
	searcher := &countingSearcher{inner: testPlaces()}
	env.Searcher = searcher

	New(ModeSmart, env).SelectRiders(context.Background(), Request{Count: 1})
	New(ModeRandom, env).SelectRiders(context.Background(), Request{Count: 1})
	riders := New(ModeSmart, env).SelectRiders(context.Background(), Request{Count: 1})
	if riders[0].POIName != "Meadow Viewpoint" {
		t.Fatalf("rebuilt strategy lost the cached places: %+v", riders[0])
	}
	if got := searcher.Calls(); got != len(poi.Categories) {
		t.Fatalf("rebuild searched again: %d calls, want %d", got, len(poi.Categories))
	}

	other := env
	other.Zone.ID = "another-zone"
	New(ModeSmart, other).SelectRiders(context.Background(), Request{Count: 1})
	if got := searcher.Calls(); got != 2*len(poi.Categories) {
		t.Fatalf("a different zone should search: %d calls", got)
	}
}

func TestSmartSkipsOccupiedAndNearbyPlaces(t *testing.T) {
	env, clock := testEnv(t)
	env.Searcher = testPlaces()
	s := NewSmart(env)

	taken := model.NewRider(zoneCenter, model.TierHigh, clock.Now(), "Meadow Viewpoint", "viewpoint")
	riders := s.SelectRiders(context.Background(), Request{Count: 1, Existing: []model.Rider{taken}})
	if riders[0].POIName != "Upper Lawn" {
		t.Fatalf("occupied place reused: %+v", riders[0])
	}

	riders = s.SelectRiders(context.Background(), Request{Count: 1, Near: &nearCenter})
	if riders[0].POIName != "Meadow Viewpoint" {
		t.Fatalf("place beside the player used: %+v", riders[0])
	}
}

func TestSmartDegradesOnSearchFailures(t *testing.T) {
	env, _ := testEnv(t)
	var logs bytes.Buffer
	env.Log = logging.New(logging.Config{Level: "warn", Writer: &logs})
	env.Searcher = &countingSearcher{inner: testPlaces(), fail: map[poi.Category]error{poi.Viewpoint: errors.New("timeout")}}
	riders := NewSmart(env).SelectRiders(context.Background(), Request{Count: 1})
	if riders[0].POIName != "Upper Lawn" {
		t.Fatalf("expected failed category to be skipped, got %+v", riders[0])
	}
	if n := strings.Count(logs.String(), "poi category lookup failed"); n != 1 {
		t.Fatalf("logged %d lookup failures, want 1:\n%s", n, logs.String())
	}

	failAll := make(map[poi.Category]error)
	for _, c := range poi.Categories {
		failAll[c] = errors.New("offline")
	}
	env.Searcher = &countingSearcher{inner: testPlaces(), fail: failAll}
	env.Places = NewPlaceCache()
	riders = NewSmart(env).SelectRiders(context.Background(), Request{Count: 3})
	if len(riders) != 3 {
		t.Fatalf("got %d riders, want 3", len(riders))
	}
	for _, rd := range riders {
		if rd.POICategory != "random" {
			t.Fatalf("expected random fallback, got %+v", rd)
		}
	}
}

func TestRankAppliesLandmarkBonus(t *testing.T) {
	env, _ := testEnv(t)
	s := NewSmart(env)
	ranked := s.Rank([]poi.Place{
		{Name: "Plain Park", Category: poi.Park, Coordinate: zoneCenter},
		{Name: "Bay Overlook", Category: poi.Park, Coordinate: zoneCenter},
	})
	if ranked[0].Place.Name != "Bay Overlook" {
		t.Fatalf("landmark not ranked first: %+v", ranked)
	}
	if diff := ranked[0].Score - ranked[1].Score*landmarkBonus; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("bonus ratio wrong: %v vs %v", ranked[0].Score, ranked[1].Score)
	}
	if d := ranked[1].Score - 0.9; d > 1e-6 || d < -1e-6 {
		t.Fatalf("centre park score = %v, want 0.9", ranked[1].Score)
	}
}

func TestTierForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  model.Tier
	}{
		{1.2, model.TierHigh},
		{0.81, model.TierHigh},
		{0.8, model.TierMedium},
		{0.51, model.TierMedium},
		{0.5, model.TierLow},
		{-0.3, model.TierLow},
	}
	for _, tc := range cases {
		if got := TierForScore(tc.score); got != tc.want {
			t.Fatalf("TierForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

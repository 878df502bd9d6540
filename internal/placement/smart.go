package placement

import (
	"context"
	"sort"
	"strings"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/poi"
	"github.com/signalsfoundry/riderunner/model"
	"go.opentelemetry.io/otel/attribute"
)

const (
	landmarkBonus   = 1.2
	highTierScore   = 0.8
	mediumTierScore = 0.5

	// occupiedRadius is how close a rider must stand to a place for the
	// place to count as taken.
	occupiedRadius = 1.0
)

var landmarkKeywords = []string{"view", "lookout", "vista", "overlook"}

// Smart ranks nearby points of interest by centrality and category and
// places riders on the best ones.
type Smart struct {
	env      Env
	poly     geo.Polygon
	bounds   geo.Bounds
	fallback *Random
}

// NewSmart builds a Smart strategy. A nil env.Searcher makes it behave like
// Random.
func NewSmart(env Env) *Smart {
	env = env.withDefaults()
	poly := env.Zone.Polygon()
	return &Smart{env: env, poly: poly, bounds: poly.Bounds(), fallback: NewRandom(env)}
}

func (s *Smart) Mode() Mode { return ModeSmart }

// Scored is a place with its ranking score.
type Scored struct {
	Place poi.Place
	Score float64
}

// SelectRiders places riders on the highest-scoring free places and fills
// any shortfall with Random.
func (s *Smart) SelectRiders(ctx context.Context, req Request) []model.Rider {
	if req.Count <= 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "placement.smart.select")
	defer span.End()

	var candidates []poi.Place
	for _, p := range s.places(ctx) {
		if s.env.farFromPlayer(p.Coordinate, req.Near) && !occupied(p.Coordinate, req.Existing) {
			candidates = append(candidates, p)
		}
	}
	span.SetAttributes(attribute.Int("placement.candidates", len(candidates)))
	if len(candidates) == 0 {
		return s.fallback.SelectRiders(ctx, req)
	}

	ranked := s.Rank(candidates)
	now := s.env.Clock.Now()
	out := make([]model.Rider, 0, req.Count)
	for _, sc := range ranked {
		if len(out) == req.Count {
			break
		}
		out = append(out, model.NewRider(sc.Place.Coordinate, TierForScore(sc.Score), now, sc.Place.Name, string(sc.Place.Category)))
	}

	if missing := req.Count - len(out); missing > 0 {
		existing := append(append([]model.Rider(nil), req.Existing...), out...)
		out = append(out, s.fallback.SelectRiders(ctx, Request{Count: missing, Existing: existing, Near: req.Near})...)
	}
	return out
}

// Rank scores places and sorts them best first. The score is
// (1 - distanceFromCentre/diagonal) x categoryWeight x landmarkBonus.
func (s *Smart) Rank(places []poi.Place) []Scored {
	center := s.bounds.Center()
	diagonal := s.bounds.Diagonal()
	out := make([]Scored, 0, len(places))
	for _, p := range places {
		distanceScore := 1.0
		if diagonal > 0 {
			distanceScore = 1 - center.DistanceTo(p.Coordinate)/diagonal
		}
		score := distanceScore * p.Category.Weight()
		if isLandmark(p.Name) {
			score *= landmarkBonus
		}
		out = append(out, Scored{Place: p, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// TierForScore maps a ranking score onto a tier.
func TierForScore(score float64) model.Tier {
	switch {
	case score > highTierScore:
		return model.TierHigh
	case score > mediumTierScore:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// places returns the zone's cached search results, refreshing them when
// none are cached or they are older than the TTL.
func (s *Smart) places(ctx context.Context) []poi.Place {
	return s.env.Places.get(s.env.Zone.ID, s.env.Clock.Now, s.env.CacheTTL, func() []poi.Place {
		return s.fetch(ctx)
	})
}

func (s *Smart) fetch(ctx context.Context) []poi.Place {
	if s.env.Searcher == nil {
		return nil
	}
	ctx, span := tracer.Start(ctx, "placement.smart.fetch")
	defer span.End()

	type key struct {
		name string
		c    geo.Coordinate
	}
	seen := make(map[key]bool)
	var all []poi.Place
	for _, cat := range poi.Categories {
		found, err := s.env.Searcher.Search(ctx, s.bounds, cat)
		if err != nil {
			s.env.Log.Warn(ctx, "poi category lookup failed",
				logging.String("category", string(cat)),
				logging.Err(err),
			)
			continue
		}
		for _, p := range found {
			if !s.poly.Contains(p.Coordinate) {
				continue
			}
			k := key{p.Name, p.Coordinate}
			if seen[k] {
				continue
			}
			seen[k] = true
			if p.Category == "" {
				p.Category = cat
			}
			all = append(all, p)
		}
	}
	span.SetAttributes(attribute.Int("poi.places", len(all)))
	return all
}

func isLandmark(name string) bool {
	n := strings.ToLower(name)
	for _, kw := range landmarkKeywords {
		if strings.Contains(n, kw) {
			return true
		}
	}
	return false
}

func occupied(c geo.Coordinate, riders []model.Rider) bool {
	for _, r := range riders {
		if r.Coordinate.DistanceTo(c) < occupiedRadius {
			return true
		}
	}
	return false
}

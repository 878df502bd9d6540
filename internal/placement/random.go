package placement

import (
	"context"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/model"
)

const (
	pointAttempts  = 100
	playerAttempts = 50
)

// Random places riders uniformly inside the zone polygon.
type Random struct {
	env    Env
	poly   geo.Polygon
	bounds geo.Bounds
}

// NewRandom builds a Random strategy for env.Zone.
func NewRandom(env Env) *Random {
	env = env.withDefaults()
	poly := env.Zone.Polygon()
	return &Random{env: env, poly: poly, bounds: poly.Bounds()}
}

func (r *Random) Mode() Mode { return ModeRandom }

// SelectRiders always returns exactly req.Count riders. The distance from the
// player is best effort: after playerAttempts rejected draws the last sample
// is kept.
func (r *Random) SelectRiders(_ context.Context, req Request) []model.Rider {
	if req.Count <= 0 {
		return nil
	}
	now := r.env.Clock.Now()
	out := make([]model.Rider, 0, req.Count)
	for range req.Count {
		var c geo.Coordinate
		for attempt := 0; attempt < playerAttempts; attempt++ {
			c = r.point()
			if r.env.farFromPlayer(c, req.Near) {
				break
			}
		}
		out = append(out, model.NewRider(c, r.env.Chances.Draw(r.env.Rand), now, "", string(ModeRandom)))
	}
	return out
}

// point samples inside the polygon, falling back to the bounding-box centre.
func (r *Random) point() geo.Coordinate {
	if c, ok := geo.RandomPointIn(r.poly, r.env.Rand, pointAttempts); ok {
		return c
	}
	return r.bounds.Center()
}

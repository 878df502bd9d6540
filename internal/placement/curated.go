package placement

import (
	"context"

	"github.com/signalsfoundry/riderunner/model"
)

// Curated places riders on a fixed catalog of hand-picked points.
type Curated struct {
	env      Env
	fallback *Random
}

// NewCurated builds a Curated strategy over env.Catalog.
func NewCurated(env Env) *Curated {
	env = env.withDefaults()
	return &Curated{env: env, fallback: NewRandom(env)}
}

func (c *Curated) Mode() Mode { return ModeCurated }

// SelectRiders cycles through the shuffled catalog entries that lie inside
// the zone and away from the player. With no usable entry it hands the whole
// request to Random.
func (c *Curated) SelectRiders(ctx context.Context, req Request) []model.Rider {
	if req.Count <= 0 {
		return nil
	}
	poly := c.env.Zone.Polygon()
	var valid []model.CuratedPOI
	for _, p := range c.env.Catalog {
		if poly.Contains(p.Coordinate) && c.env.farFromPlayer(p.Coordinate, req.Near) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		c.env.Log.Debug(ctx, "no curated points usable; falling back to random")
		return c.fallback.SelectRiders(ctx, req)
	}

	c.env.Rand.Shuffle(len(valid), func(i, j int) { valid[i], valid[j] = valid[j], valid[i] })
	now := c.env.Clock.Now()
	out := make([]model.Rider, 0, req.Count)
	for i := range req.Count {
		p := valid[i%len(valid)]
		out = append(out, model.NewRider(p.Coordinate, p.Tier, now, p.Name, string(ModeCurated)))
	}
	return out
}

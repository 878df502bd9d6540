// Package placement decides where new riders appear. Three strategies are
// provided: Random samples uniformly inside the zone, Curated draws from a
// hand-placed catalog, and Smart ranks real points of interest. All of them
// degrade to Random rather than return fewer riders than asked for.
package placement

import (
	"context"
	"strings"
	"time"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/config"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/poi"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/signalsfoundry/riderunner/internal/placement")

// Mode names a placement strategy.
type Mode string

const (
	ModeRandom  Mode = "random"
	ModeCurated Mode = "curated"
	ModeSmart   Mode = "smart"
)

// ParseMode maps a configuration string onto a Mode. Matching is
// case-insensitive and anything unrecognised selects ModeSmart.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRandom:
		return ModeRandom
	case ModeCurated:
		return ModeCurated
	default:
		return ModeSmart
	}
}

// Request asks a strategy for Count new riders. Existing lists riders already
// in play and Near is the player's last known position, if any.
type Request struct {
	Count    int
	Existing []model.Rider
	Near     *geo.Coordinate
}

// Strategy produces rider placements. SelectRiders may block on network
// lookups and must be safe to call from several goroutines at once.
type Strategy interface {
	Mode() Mode
	SelectRiders(ctx context.Context, req Request) []model.Rider
}

// Env carries everything a strategy needs. It is built once per zone and
// configuration and handed to New.
type Env struct {
	Zone              model.Zone
	Chances           model.TierChances
	MinPlayerDistance float64
	CacheTTL          time.Duration
	Catalog           []model.CuratedPOI
	Searcher          poi.Searcher
	Rand              *geo.Rand
	Clock             timectrl.Clock
	Log               logging.Logger
	// Places caches point-of-interest lookups across strategies built from
	// this Env.
	Places *PlaceCache
}

// EnvFromConfig fills an Env from the game tunables.
func EnvFromConfig(zone model.Zone, cfg config.Game, searcher poi.Searcher, rnd *geo.Rand, clock timectrl.Clock, log logging.Logger) Env {
	return Env{
		Zone:              zone,
		Chances:           cfg.TierChances,
		MinPlayerDistance: cfg.MinSpawnDistanceFromPlayer,
		CacheTTL:          cfg.POICacheTTL,
		Catalog:           cfg.Curated,
		Searcher:          searcher,
		Rand:              rnd,
		Clock:             clock,
		Log:               log,
		Places:            NewPlaceCache(),
	}
}

func (e Env) withDefaults() Env {
	if e.Rand == nil {
		e.Rand = geo.NewRand(0)
	}
	if e.Clock == nil {
		e.Clock = timectrl.WallClock{}
	}
	if e.Log == nil {
		e.Log = logging.Noop()
	}
	if e.Places == nil {
		e.Places = NewPlaceCache()
	}
	if e.CacheTTL <= 0 {
		e.CacheTTL = 24 * time.Hour
	}
	return e
}

// New builds the strategy named by mode.
func New(mode Mode, env Env) Strategy {
	env = env.withDefaults()
	switch mode {
	case ModeRandom:
		return NewRandom(env)
	case ModeCurated:
		return NewCurated(env)
	default:
		return NewSmart(env)
	}
}

// farFromPlayer reports whether c honours the minimum spawn distance.
func (e Env) farFromPlayer(c geo.Coordinate, near *geo.Coordinate) bool {
	return near == nil || near.DistanceTo(c) >= e.MinPlayerDistance
}

// Package config holds the game's tunable parameters. A Game value is built
// once, validated, and then passed explicitly to the engine and the
// placement factory; changing settings at runtime means handing the engine
// a new value.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/signalsfoundry/riderunner/model"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Game holds every tunable of the simulation. Distances are metres, speeds
// metres per second, and countdown quantities seconds.
type Game struct {
	// StartTime is the countdown value a fresh game begins with.
	StartTime float64 `yaml:"startTime"`

	PickupRadius float64 `yaml:"pickupRadius"`
	// DropRadius of zero follows PickupRadius.
	DropRadius      float64       `yaml:"dropRadius"`
	PickupDwellTime time.Duration `yaml:"pickupDwellTime"`
	// PickupBonus is added to the countdown on every pickup.
	PickupBonus float64 `yaml:"pickupBonus"`

	MinTripDistance float64 `yaml:"minTripDistance"`
	MaxTripDistance float64 `yaml:"maxTripDistance"`

	// FatigueRate multiplies the fatigue scalar after each delivery.
	FatigueRate  float64 `yaml:"fatigueRate"`
	AvgBikeSpeed float64 `yaml:"avgBikeSpeed"`

	// AreaPerRider is square metres of zone per active rider.
	AreaPerRider float64           `yaml:"areaPerRider"`
	TierChances  model.TierChances `yaml:"tierChances"`
	TierRewards  model.TierRewards `yaml:"tierRewards"`

	// PlacementMode is random, curated or smart (case-insensitive).
	PlacementMode              string             `yaml:"placementMode"`
	MinSpawnDistanceFromPlayer float64            `yaml:"minSpawnDistanceFromPlayer"`
	RiderLifetime              time.Duration      `yaml:"riderLifetime"`
	POICacheTTL                time.Duration      `yaml:"poiCacheTTL"`
	Curated                    []model.CuratedPOI `yaml:"curated"`

	TickInterval time.Duration `yaml:"-"`

	SpeedGuardEnabled    bool          `yaml:"speedGuardEnabled"`
	MaxSpeed             float64       `yaml:"maxSpeed"`
	SpeedWarningCooldown time.Duration `yaml:"speedWarningCooldown"`

	ColorBlindMode bool    `yaml:"colorBlindMode"`
	MinZoneAreaKm2 float64 `yaml:"minZoneAreaKm2"`

	// Seed fixes the random source; zero seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

// Default returns the stock tuning.
func Default() Game {
	return Game{
		StartTime:                  120,
		PickupRadius:               4.572,
		PickupDwellTime:            4 * time.Second,
		PickupBonus:                10,
		MinTripDistance:            45.72,
		MaxTripDistance:            300,
		FatigueRate:                0.97,
		AvgBikeSpeed:               4.5,
		AreaPerRider:               150,
		TierChances:                model.TierChances{High: 0.20, Medium: 0.35},
		TierRewards:                model.TierRewards{High: 30, Medium: 20, Low: 10},
		PlacementMode:              "smart",
		MinSpawnDistanceFromPlayer: 30.48,
		RiderLifetime:              model.DefaultRiderLifetime,
		POICacheTTL:                24 * time.Hour,
		Curated:                    FortMasonCatalog(),
		TickInterval:               500 * time.Millisecond,
		SpeedGuardEnabled:          true,
		MaxSpeed:                   8.0,
		SpeedWarningCooldown:       3 * time.Second,
		MinZoneAreaKm2:             0.001,
	}
}

// DropRadiusM returns the effective drop-off radius.
func (g Game) DropRadiusM() float64 {
	if g.DropRadius > 0 {
		return g.DropRadius
	}
	return g.PickupRadius
}

// Validate reports every out-of-range tunable at once.
func (g Game) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(g.StartTime > 0, "startTime must be positive, got %v", g.StartTime)
	check(g.PickupRadius > 0, "pickupRadius must be positive, got %v", g.PickupRadius)
	check(g.DropRadius >= 0, "dropRadius must not be negative, got %v", g.DropRadius)
	check(g.PickupDwellTime >= 0, "pickupDwellTime must not be negative, got %v", g.PickupDwellTime)
	check(g.PickupBonus >= 0, "pickupBonus must not be negative, got %v", g.PickupBonus)
	check(g.MinTripDistance >= 0, "minTripDistance must not be negative, got %v", g.MinTripDistance)
	check(g.MaxTripDistance >= g.MinTripDistance, "maxTripDistance %v is below minTripDistance %v", g.MaxTripDistance, g.MinTripDistance)
	check(g.FatigueRate > 0 && g.FatigueRate < 1, "fatigueRate must be in (0,1), got %v", g.FatigueRate)
	check(g.AvgBikeSpeed > 0, "avgBikeSpeed must be positive, got %v", g.AvgBikeSpeed)
	check(g.AreaPerRider > 0, "areaPerRider must be positive, got %v", g.AreaPerRider)
	check(g.TierChances.High >= 0 && g.TierChances.High <= 1, "tierChances.high must be in [0,1], got %v", g.TierChances.High)
	check(g.TierChances.Medium >= 0 && g.TierChances.Medium <= 1, "tierChances.medium must be in [0,1], got %v", g.TierChances.Medium)
	check(g.TierChances.High+g.TierChances.Medium <= 1, "tier chances sum to %v, above 1", g.TierChances.High+g.TierChances.Medium)
	for _, r := range []float64{g.TierRewards.High, g.TierRewards.Medium, g.TierRewards.Low} {
		check(r >= 0, "tier rewards must not be negative, got %v", r)
	}
	check(g.MinSpawnDistanceFromPlayer >= 0, "minSpawnDistanceFromPlayer must not be negative")
	check(g.RiderLifetime > 0, "riderLifetime must be positive, got %v", g.RiderLifetime)
	check(g.TickInterval > 0, "tickInterval must be positive, got %v", g.TickInterval)
	check(g.MaxSpeed > 0, "maxSpeed must be positive, got %v", g.MaxSpeed)
	check(g.MinZoneAreaKm2 >= 0, "minZoneAreaKm2 must not be negative")
	for i, p := range g.Curated {
		check(p.Coordinate.Valid(), "curated[%d] %q has an out-of-range coordinate", i, p.Name)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Load overlays the YAML (or JSON) file at path onto Default and validates
// the result. An empty path yields the defaults.
func Load(path string) (Game, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Game{}, fmt.Errorf("read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse overlays a YAML or JSON document onto Default and validates it.
func Parse(data []byte) (Game, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Game{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Game{}, err
	}
	return cfg, nil
}

package model

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/riderunner/geo"
)

// Tier is the value class of a rider. It scales the reward for delivering
// that rider and controls how the rider is drawn.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Tiers lists every tier from most to least valuable.
var Tiers = []Tier{TierHigh, TierMedium, TierLow}

// ParseTier accepts a tier name (case-insensitive). The original colour
// names green/yellow/orange are accepted as aliases.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "green":
		return TierHigh, nil
	case "medium", "yellow":
		return TierMedium, nil
	case "low", "orange":
		return TierLow, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// UnmarshalText lets tiers be read from config files using any alias.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Multiplier is the payout multiplier applied to a completed delivery.
func (t Tier) Multiplier() float64 {
	switch t {
	case TierHigh:
		return 1.5
	case TierMedium:
		return 1.0
	default:
		return 0.75
	}
}

// Pulses reports whether the rider marker should pulse. Only high-value riders do.
func (t Tier) Pulses() bool {
	return t == TierHigh
}

// Visual describes how a tier is drawn by a map layer.
type Visual struct {
	Color  string `json:"color"`
	Symbol string `json:"symbol"`
	Pulses bool   `json:"pulses"`
}

// Visual returns the marker style for the tier, using the colour-blind
// palette when requested.
func (t Tier) Visual(colorBlind bool) Visual {
	v := Visual{Pulses: t.Pulses()}
	switch t {
	case TierHigh:
		v.Color, v.Symbol = "green", "star.fill"
		if colorBlind {
			v.Color = "blue"
		}
	case TierMedium:
		v.Color, v.Symbol = "yellow", "circle.fill"
		if colorBlind {
			v.Color = "purple"
		}
	default:
		v.Color, v.Symbol = "orange", "triangle.fill"
		if colorBlind {
			v.Color = "brown"
		}
	}
	return v
}

// TierRewards holds the configurable base reward of each tier, in seconds.
type TierRewards struct {
	High   float64 `json:"high" yaml:"high"`
	Medium float64 `json:"medium" yaml:"medium"`
	Low    float64 `json:"low" yaml:"low"`
}

// For returns the base reward for t.
func (r TierRewards) For(t Tier) float64 {
	switch t {
	case TierHigh:
		return r.High
	case TierMedium:
		return r.Medium
	default:
		return r.Low
	}
}

// TierChances holds the spawn probabilities of the high and medium tiers.
// Whatever remains below 1 is the low tier's share.
type TierChances struct {
	High   float64 `json:"high" yaml:"high"`
	Medium float64 `json:"medium" yaml:"medium"`
}

// Pick maps a uniform draw u in [0,1) onto a tier.
func (c TierChances) Pick(u float64) Tier {
	switch {
	case u < c.High:
		return TierHigh
	case u < c.High+c.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// Draw picks a tier using r.
func (c TierChances) Draw(r *geo.Rand) Tier {
	return c.Pick(r.Float64())
}

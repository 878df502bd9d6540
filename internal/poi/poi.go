// Package poi looks up named points of interest inside a bounding region.
// The Smart placement strategy ranks these places to decide where riders
// appear.
package poi

import (
	"context"
	"strings"

	"github.com/signalsfoundry/riderunner/geo"
)

// Category is a class of place a rider might plausibly wait at.
type Category string

const (
	PublicTransport Category = "publicTransport"
	BicycleParking  Category = "bicycleParking"
	FoodMarket      Category = "foodMarket"
	Viewpoint       Category = "viewpoint"
	Park            Category = "park"
	Trailhead       Category = "trailhead"
	Unknown         Category = "unknown"
)

// Categories is the fixed set searched by the Smart strategy, in query order.
var Categories = []Category{PublicTransport, BicycleParking, FoodMarket, Viewpoint, Park, Trailhead}

// Weight scales a place's score by how attractive its category is.
func (c Category) Weight() float64 {
	switch c {
	case Viewpoint:
		return 1.4
	case Trailhead:
		return 1.3
	case BicycleParking:
		return 1.2
	case FoodMarket:
		return 1.0
	default:
		return 0.9
	}
}

// Classify guesses a category from a display name. It is used for places
// whose source did not tag them.
func Classify(name string) Category {
	n := strings.ToLower(name)
	switch {
	case n == "":
		return Unknown
	case strings.Contains(n, "park") && !strings.Contains(n, "parking"), strings.Contains(n, "trail"):
		return Park
	case strings.Contains(n, "bike"), strings.Contains(n, "parking"):
		return BicycleParking
	case strings.Contains(n, "view"), strings.Contains(n, "lookout"):
		return Viewpoint
	case strings.Contains(n, "market"), strings.Contains(n, "food"):
		return FoodMarket
	case strings.Contains(n, "transit"), strings.Contains(n, "station"):
		return PublicTransport
	default:
		return Unknown
	}
}

// Place is one search hit.
type Place struct {
	Name       string         `json:"name"`
	Category   Category       `json:"category"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

// Searcher finds places of one category inside region. Implementations may
// fail per call; callers treat a failure as an empty result for that
// category.
type Searcher interface {
	Search(ctx context.Context, region geo.Bounds, category Category) ([]Place, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, region geo.Bounds, category Category) ([]Place, error)

func (f SearcherFunc) Search(ctx context.Context, region geo.Bounds, category Category) ([]Place, error) {
	return f(ctx, region, category)
}

// Static serves a fixed list of places. It is used for offline runs and tests.
type Static struct {
	Places []Place
}

func (s Static) Search(ctx context.Context, region geo.Bounds, category Category) ([]Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Place
	for _, p := range s.Places {
		cat := p.Category
		if cat == "" {
			cat = Classify(p.Name)
		}
		if cat == category && region.Contains(p.Coordinate) {
			p.Category = cat
			out = append(out, p)
		}
	}
	return out, nil
}

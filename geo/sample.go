package geo

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is a goroutine-safe pseudo-random source. Placement strategies run
// concurrently with the engine, so they share one of these rather than a
// bare *rand.Rand.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a Rand seeded with seed. A zero seed draws one from the
// wall clock.
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

// Uniform returns a value in [lo, hi].
func (r *Rand) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

// IntN returns a value in [0, n).
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

// Shuffle permutes n elements using swap.
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.r.Shuffle(n, swap)
}

// PointInBounds samples a coordinate uniformly inside b.
func (r *Rand) PointInBounds(b Bounds) Coordinate {
	return Coordinate{Lat: r.Uniform(b.MinLat, b.MaxLat), Lon: r.Uniform(b.MinLon, b.MaxLon)}
}

// RandomPointIn rejection-samples a point inside poly: candidates are drawn
// from the bounding box and accepted when they fall inside the polygon. It
// gives up after maxAttempts draws and reports ok=false; callers choose their
// own fallback.
func RandomPointIn(poly Polygon, r *Rand, maxAttempts int) (Coordinate, bool) {
	if poly.IsEmpty() {
		return Coordinate{}, false
	}
	b := poly.Bounds()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		c := r.PointInBounds(b)
		if poly.Contains(c) {
			return c, true
		}
	}
	return Coordinate{}, false
}

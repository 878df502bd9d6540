package placement

import (
	"sync"
	"time"

	"github.com/signalsfoundry/riderunner/internal/poi"
	"golang.org/x/sync/singleflight"
)

// PlaceCache keeps point-of-interest lookups per zone. It is shared through
// Env, so a strategy rebuilt after a settings change reuses earlier results
// instead of searching again.
type PlaceCache struct {
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cachedPlaces
}

type cachedPlaces struct {
	places []poi.Place
	at     time.Time
}

// NewPlaceCache returns an empty cache.
func NewPlaceCache() *PlaceCache {
	return &PlaceCache{entries: make(map[string]cachedPlaces)}
}

// get returns the places cached under key while they are younger than ttl
// and calls fetch otherwise. Concurrent misses on one key share a single
// fetch. Empty results are not cached.
func (c *PlaceCache) get(key string, now func() time.Time, ttl time.Duration, fetch func() []poi.Place) []poi.Place {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now().Sub(e.at) < ttl {
		c.mu.Unlock()
		return e.places
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do(key, func() (any, error) {
		found := fetch()
		if len(found) > 0 {
			c.mu.Lock()
			c.entries[key] = cachedPlaces{places: found, at: now()}
			c.mu.Unlock()
		}
		return found, nil
	})
	return v.([]poi.Place)
}

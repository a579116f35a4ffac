package aggregator

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

// pointCache keeps ad-hoc point weather per grid cell. Points within the
// same cell share cached data.
type pointCache struct {
	ttl      time.Duration
	gridSize float64
	keep     time.Duration

	mu              sync.RWMutex
	entries         map[string]*cachedWeather
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type cachedWeather struct {
	weather   *weather.Weather
	fetchedAt time.Time
	expiresAt time.Time
}

func newPointCache(ttl time.Duration, gridSize float64, keep time.Duration) *pointCache {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	if gridSize == 0 {
		gridSize = 0.1 // ~11km at equator
	}
	return &pointCache{
		ttl:             ttl,
		gridSize:        gridSize,
		keep:            keep,
		entries:         make(map[string]*cachedWeather),
		cleanupInterval: 5 * time.Minute,
	}
}

// key rounds lat/lon to the grid cell and includes the feature set.
func (c *pointCache) key(lat, lon float64, features []weather.Feature) string {
	gridLat := math.Floor(lat/c.gridSize) * c.gridSize
	gridLon := math.Floor(lon/c.gridSize) * c.gridSize

	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return fmt.Sprintf("%.2f:%.2f:%s", gridLat, gridLon, strings.Join(names, ","))
}

// fresh returns the cached weather when it has not expired.
func (c *pointCache) fresh(key string, now time.Time) (*weather.Weather, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.entries[key]
	if !ok || !now.Before(cached.expiresAt) {
		return nil, false
	}
	return cached.weather, true
}

// previous returns the cached weather regardless of expiry, for stale
// retention.
func (c *pointCache) previous(key string) *weather.Weather {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cached, ok := c.entries[key]; ok {
		return cached.weather
	}
	return nil
}

func (c *pointCache) put(key string, w *weather.Weather, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cachedWeather{
		weather:   w,
		fetchedAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.cleanupIfNeeded(now)
}

// cleanupIfNeeded drops entries too old to serve as stale data. Callers
// hold the write lock.
func (c *pointCache) cleanupIfNeeded(now time.Time) {
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now

	for key, cached := range c.entries {
		if now.After(cached.fetchedAt.Add(c.keep)) {
			delete(c.entries, key)
		}
	}
}

func (c *pointCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CachedPoints returns the number of cached ad-hoc points.
func (s *Service) CachedPoints() int {
	return s.points.len()
}

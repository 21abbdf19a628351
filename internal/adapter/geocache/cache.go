// Package geocache decorates a reverse geocoder with an in-memory LRU and an
// optional persistent second tier.
package geocache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

// Store is a persistent cache tier keyed by rounded coordinates.
type Store interface {
	Get(ctx context.Context, key string) (domain.GeocodingResult, bool, error)
	Put(ctx context.Context, key string, result domain.GeocodingResult) error
}

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache and an optional
// Store consulted on memory misses.
type CachedGeocoder struct {
	inner   domain.Geocoder
	memory  *lruCache
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. store may be nil.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, store Store, logger *slog.Logger, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		memory:  newLRUCache(maxEntries),
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Key rounds coordinates to six decimals (about 0.1 m).
func Key(lat, lon float64) string {
	return fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := Key(lat, lon)
	if result, ok := c.memory.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	if c.store != nil {
		result, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("geocode store read failed", "key", key, "error", err)
		case ok:
			c.metrics.GeocodeCache.WithLabelValues("sqlite", "hit").Inc()
			c.memory.put(key, result)
			return result, nil
		default:
			c.metrics.GeocodeCache.WithLabelValues("sqlite", "miss").Inc()
		}
	}

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress == "" {
		return result, nil
	}
	c.memory.put(key, result)
	if c.store != nil {
		if err := c.store.Put(ctx, key, result); err != nil {
			c.logger.Warn("geocode store write failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// Package geocache memoizes geocoding results in a key-value store so
// repeated entities within and across batches skip the remote service.
package geocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/db"
	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
)

// store is the consumer interface for the geocode cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedGeocoder caches successful lookups of the inner geocoder. Store
// failures degrade to misses, never to request failures.
type CachedGeocoder struct {
	inner      domain.Geocoder
	store      store
	keyPrefix  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Geocoder,
	s store,
	keyPrefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedGeocoder {
	return &CachedGeocoder{
		inner:      inner,
		store:      s,
		keyPrefix:  keyPrefix,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

type cachedLocation struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// Geocode returns a cached location or calls the inner geocoder. Only
// successful lookups are cached; failures always reach the inner geocoder
// so transient conditions can clear.
func (c *CachedGeocoder) Geocode(ctx context.Context, entity string, aoi *area.Area) (domain.Location, error) {
	key := c.cacheKey(entity, aoi)

	if loc, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return loc, nil
	}
	c.incCache("miss")

	loc, err := c.inner.Geocode(ctx, entity, aoi)
	if err != nil {
		return domain.Location{}, fmt.Errorf("geocode entity: %w", err)
	}

	c.putToCache(ctx, key, loc)
	return loc, nil
}

func (c *CachedGeocoder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes the whitespace-normalized lowercase entity text together
// with the area bounds, so the same entity under a different area bias is
// a distinct entry.
func (c *CachedGeocoder) cacheKey(entity string, aoi *area.Area) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(entity)), " ")
	if aoi != nil {
		normalized += fmt.Sprintf("|%v,%v,%v,%v", aoi.MinLat, aoi.MaxLat, aoi.MinLon, aoi.MaxLon)
	}
	h := sha256.Sum256([]byte(normalized))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedGeocoder) getFromCache(ctx context.Context, key string) (domain.Location, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached location", zap.String("key", key), zap.Error(err))
		}
		return domain.Location{}, false
	}

	var cached cachedLocation
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("Failed to parse cached location", zap.String("key", key), zap.Error(err))
		return domain.Location{}, false
	}
	return domain.Location{Lat: cached.Lat, Lon: cached.Lon, Zoom: cached.Zoom}, true
}

func (c *CachedGeocoder) putToCache(ctx context.Context, key string, loc domain.Location) {
	data, err := json.Marshal(cachedLocation{Lat: loc.Lat, Lon: loc.Lon, Zoom: loc.Zoom})
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache location", zap.String("key", key), zap.Error(err))
	}
}

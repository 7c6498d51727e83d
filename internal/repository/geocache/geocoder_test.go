package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/db"
	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
)

type mockGeocoder struct {
	loc   domain.Location
	err   error
	calls int
}

func (m *mockGeocoder) Geocode(_ context.Context, _ string, _ *area.Area) (domain.Location, error) {
	m.calls++
	return m.loc, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedGeocoder(t *testing.T, inner *mockGeocoder) (*CachedGeocoder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cg := New(inner, ms, "geotag:", time.Hour, nil, zap.NewNop())
	return cg, ms
}

func TestGeocode_CacheMiss(t *testing.T) {
	inner := &mockGeocoder{loc: domain.Location{Lat: 48.8566, Lon: 2.3522, Zoom: 11}}
	cg, ms := newTestCachedGeocoder(t, inner)
	ctx := context.Background()

	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, value []byte, ttl time.Duration) error {
		setCalled = true
		if ttl != time.Hour {
			t.Errorf("unexpected ttl: %v", ttl)
		}
		var cached cachedLocation
		if err := json.Unmarshal(value, &cached); err != nil {
			t.Errorf("cached value is not valid JSON: %v", err)
		}
		return nil
	}

	loc, err := cg.Geocode(ctx, "Paris", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Lat != 48.8566 || inner.calls != 1 {
		t.Errorf("expected inner geocoder result, got %+v (calls=%d)", loc, inner.calls)
	}
	if !setCalled {
		t.Fatal("expected SET to be called for cache put")
	}
}

func TestGeocode_CacheHit(t *testing.T) {
	inner := &mockGeocoder{loc: domain.Location{Lat: 1, Lon: 1, Zoom: 16}}
	cg, ms := newTestCachedGeocoder(t, inner)
	ctx := context.Background()

	cached, _ := json.Marshal(cachedLocation{Lat: 48.8566, Lon: 2.3522, Zoom: 11})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	loc, err := cg.Geocode(ctx, "Paris", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Lat != 48.8566 || loc.Zoom != 11 {
		t.Errorf("expected cached location, got %+v", loc)
	}
	if inner.calls != 0 {
		t.Errorf("inner geocoder should not be called on a hit, calls=%d", inner.calls)
	}
}

func TestGeocode_StoreFailureDegradesToMiss(t *testing.T) {
	inner := &mockGeocoder{loc: domain.Location{Lat: 2, Lon: 3, Zoom: 16}}
	cg, ms := newTestCachedGeocoder(t, inner)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection refused")
	}

	loc, err := cg.Geocode(ctx, "Berlin", nil)
	if err != nil {
		t.Fatalf("store failure must not fail the request: %v", err)
	}
	if loc.Lat != 2 || inner.calls != 1 {
		t.Errorf("expected inner result, got %+v (calls=%d)", loc, inner.calls)
	}
}

func TestGeocode_InnerErrorNotCached(t *testing.T) {
	inner := &mockGeocoder{err: domain.ErrNoCandidates}
	cg, ms := newTestCachedGeocoder(t, inner)

	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		setCalled = true
		return nil
	}

	_, err := cg.Geocode(context.Background(), "Atlantis", nil)
	if !errors.Is(err, domain.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	if setCalled {
		t.Error("failed lookups must not be cached")
	}
}

func TestCacheKey_NormalizationAndArea(t *testing.T) {
	cg, _ := newTestCachedGeocoder(t, &mockGeocoder{})

	if cg.cacheKey("  New   York ", nil) != cg.cacheKey("new york", nil) {
		t.Error("key should normalize case and whitespace")
	}

	aoi := &area.Area{MinLat: 40, MaxLat: 41, MinLon: -75, MaxLon: -73}
	if cg.cacheKey("new york", nil) == cg.cacheKey("new york", aoi) {
		t.Error("area bias must produce a distinct key")
	}
}

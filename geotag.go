// Package geotag detects geographic entities in free text, resolves them
// to coordinates and renders them as tagged markup or map hyperlinks.
package geotag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/config"
	"github.com/kailas-cloud/geotag/internal/db"
	dbRedis "github.com/kailas-cloud/geotag/internal/db/redis"
	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
	"github.com/kailas-cloud/geotag/internal/metrics"
	"github.com/kailas-cloud/geotag/internal/repository/geocache"
	azureRec "github.com/kailas-cloud/geotag/internal/transport/azure"
	esriGeo "github.com/kailas-cloud/geotag/internal/transport/esri"
	hugotRec "github.com/kailas-cloud/geotag/internal/transport/hugot"
	shipengineRec "github.com/kailas-cloud/geotag/internal/transport/shipengine"
	annotateuc "github.com/kailas-cloud/geotag/internal/usecase/annotate"
	geotaguc "github.com/kailas-cloud/geotag/internal/usecase/geotag"
	pipelineuc "github.com/kailas-cloud/geotag/internal/usecase/pipeline"
)

const (
	defaultGeocoderTimeout  = 10 * time.Second
	defaultGeocoderAttempts = 2
	defaultCourtesyDelay    = 500 * time.Millisecond
	defaultCacheKeyPrefix   = "geotag:"
	defaultReadinessTimeout = 10 * time.Second
)

// Area is a rectangular region of interest in decimal degrees.
type Area struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Result is the outcome of processing one input text.
type Result struct {
	Text        string `json:"text"`
	HasEntities bool   `json:"has_entities"`
}

// Client is the geotag SDK entry point.
type Client struct {
	pipeline    *pipelineuc.Service
	store       db.Store
	recognizers []domain.Recognizer
}

// New creates a Client. Recognizers are opt-in: without WithNER,
// WithAddressRecognizer or WithCloudRecognizer the pipeline passes text
// through unannotated.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		geocoderURL:      config.DefaultGeocoderURL,
		geocoderTimeout:  defaultGeocoderTimeout,
		geocoderAttempts: defaultGeocoderAttempts,
		courtesyDelay:    defaultCourtesyDelay,
		nerModel:         "KnightsAnalytics/distilbert-NER",
		nerModelDir:      "./models",
		nerTargets:       []string{"LOC"},
		addressFallback:  true,
		isolation:        true,
		nestedTagRemoval: true,
		logger:           zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	metrics.RegisterPipelineMetrics()

	var store db.Store
	if len(cfg.cacheAddrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("geotag: create cache store: %w", err)
		}
		if err := s.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("geotag: cache not ready: %w", err)
		}
		store = s
	}

	recognizers, err := buildRecognizers(cfg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	var geocoder domain.Geocoder = esriGeo.New(esriGeo.Config{
		URL:         cfg.geocoderURL,
		APIKey:      cfg.geocoderKey,
		Timeout:     cfg.geocoderTimeout,
		MaxAttempts: cfg.geocoderAttempts,
		Logger:      cfg.logger,
	})
	if store != nil {
		geocoder = geocache.New(geocoder, store, defaultCacheKeyPrefix, cfg.cacheTTL, metrics.GeocodeCacheTotal, cfg.logger)
	}

	annotateSvc := annotateuc.New(recognizers, annotateuc.Config{
		PlaceholderIsolation: cfg.isolation,
		NestedTagRemoval:     cfg.nestedTagRemoval,
	}, cfg.logger)
	geotagSvc := geotaguc.New(geocoder, geotaguc.Config{
		CourtesyDelay: cfg.courtesyDelay,
	}, cfg.logger)

	return &Client{
		pipeline:    pipelineuc.New(annotateSvc, geotagSvc, geotaguc.FilterByAreas, cfg.logger),
		store:       store,
		recognizers: recognizers,
	}, nil
}

func buildRecognizers(cfg *clientConfig) ([]domain.Recognizer, error) {
	var recognizers []domain.Recognizer
	if cfg.nerEnabled {
		rec, err := hugotRec.New(hugotRec.Config{
			Model:          cfg.nerModel,
			ModelDir:       cfg.nerModelDir,
			TargetEntities: cfg.nerTargets,
			Logger:         cfg.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("geotag: create ner recognizer: %w", err)
		}
		recognizers = append(recognizers, rec)
	}
	if cfg.addressEnabled {
		recognizers = append(recognizers, shipengineRec.New(shipengineRec.Config{
			APIKey:         cfg.addressKey,
			EnableFallback: cfg.addressFallback,
			Timeout:        10 * time.Second,
			Logger:         cfg.logger,
		}))
	}
	if cfg.cloudEnabled {
		recognizers = append(recognizers, azureRec.New(azureRec.Config{
			APIKey:              cfg.cloudKey,
			Endpoint:            cfg.cloudEndpoint,
			TargetEntities:      []string{"Location", "Address"},
			ConfidenceThreshold: 0.8,
			Timeout:             30 * time.Second,
			Logger:              cfg.logger,
		}))
	}
	return recognizers, nil
}

// TagText annotates and geocodes a single text. On an unrecovered
// failure the original input text is returned alongside the error.
func (c *Client) TagText(ctx context.Context, text string, areas []Area) (string, error) {
	results, err := c.pipeline.TagTexts(ctx, []string{text}, toInternalAreas(areas))
	if err != nil {
		return text, fmt.Errorf("geotag: tag text: %w", err)
	}
	return results[0].Text, nil
}

// TagTexts processes a batch sequentially. A geocoding transport failure
// aborts the batch.
func (c *Client) TagTexts(ctx context.Context, texts []string, areas []Area) ([]Result, error) {
	results, err := c.pipeline.TagTexts(ctx, texts, toInternalAreas(areas))
	if err != nil {
		return nil, fmt.Errorf("geotag: tag texts: %w", err)
	}
	return toPublicResults(results), nil
}

// RenderText runs TagText and rewrites resolved tags as map hyperlinks.
func (c *Client) RenderText(ctx context.Context, text string, areas []Area) (string, error) {
	results, err := c.pipeline.RenderTexts(ctx, []string{text}, toInternalAreas(areas))
	if err != nil {
		return text, fmt.Errorf("geotag: render text: %w", err)
	}
	return results[0].Text, nil
}

// RenderTexts is the batch form of RenderText.
func (c *Client) RenderTexts(ctx context.Context, texts []string, areas []Area) ([]Result, error) {
	results, err := c.pipeline.RenderTexts(ctx, texts, toInternalAreas(areas))
	if err != nil {
		return nil, fmt.Errorf("geotag: render texts: %w", err)
	}
	return toPublicResults(results), nil
}

// Close releases the cache connection and any recognizer sessions.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
	for _, rec := range c.recognizers {
		if closer, ok := rec.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}

func toInternalAreas(areas []Area) []area.Area {
	if len(areas) == 0 {
		return nil
	}
	out := make([]area.Area, len(areas))
	for i, a := range areas {
		out[i] = area.Area{MinLat: a.MinLat, MaxLat: a.MaxLat, MinLon: a.MinLon, MaxLon: a.MaxLon}
	}
	return out
}

func toPublicResults(results []pipelineuc.Result) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{Text: r.Text, HasEntities: r.HasEntities}
	}
	return out
}

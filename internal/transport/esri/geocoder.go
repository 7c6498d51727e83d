// Package esri implements the geocoding client for the ArcGIS World
// Geocoding Service.
package esri

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
	"github.com/kailas-cloud/geotag/internal/domain/extent"
	"github.com/kailas-cloud/geotag/internal/metrics"
)

// Compile-time check: Geocoder implements domain.Geocoder.
var _ domain.Geocoder = (*Geocoder)(nil)

// Config holds parameters for the geocoding client.
type Config struct {
	URL         string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	Logger      *zap.Logger
}

// Geocoder resolves entity text through the findAddressCandidates endpoint.
type Geocoder struct {
	url         string
	apiKey      string
	client      *http.Client
	maxAttempts int
	logger      *zap.Logger
}

// New creates a geocoding client.
func New(cfg Config) *Geocoder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Geocoder{
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// candidate mirrors one entry of the findAddressCandidates response.
type candidate struct {
	Address  string `json:"address"`
	Location struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"location"`
	Extent *extent.Extent `json:"extent"`
}

type geocodeResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Geocode resolves the entity text to a location. With an area of interest
// the service is asked for several candidates and the first one inside the
// area wins; without one, only the top candidate is requested. Transient
// transport failures are retried up to the configured attempt count.
func (g *Geocoder) Geocode(ctx context.Context, entity string, aoi *area.Area) (domain.Location, error) {
	if g.apiKey == "" {
		return domain.Location{}, fmt.Errorf("api key not configured: %w", domain.ErrCredentialInvalid)
	}

	maxLocations := 1
	if aoi != nil {
		maxLocations = 10
	}

	params := url.Values{}
	params.Set("f", "json")
	params.Set("singleLine", entity)
	params.Set("maxLocations", strconv.Itoa(maxLocations))
	params.Set("outFields", "*")
	params.Set("token", g.apiKey)
	requestURL := g.url + "?" + params.Encode()

	start := time.Now()
	body, err := g.get(ctx, requestURL)
	metrics.GeocodeRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return domain.Location{}, err
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return domain.Location{}, fmt.Errorf("decode response: %w", domain.ErrMalformedResponse)
	}

	if resp.Error != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		msg := strings.ToLower(resp.Error.Message)
		if strings.Contains(msg, "token") || strings.Contains(msg, "invalid") {
			return domain.Location{}, fmt.Errorf("api error %d: %s: %w", resp.Error.Code, resp.Error.Message, domain.ErrCredentialInvalid)
		}
		return domain.Location{}, fmt.Errorf("api error %d: %s: %w", resp.Error.Code, resp.Error.Message, domain.ErrMalformedResponse)
	}

	if len(resp.Candidates) == 0 {
		metrics.GeocodeRequestsTotal.WithLabelValues("miss").Inc()
		g.logger.Debug("no candidates", zap.String("entity", entity))
		return domain.Location{}, domain.ErrNoCandidates
	}

	chosen := selectCandidate(resp.Candidates, aoi)
	zoom := extent.DefaultZoom
	if chosen.Extent != nil {
		zoom = chosen.Extent.Zoom()
	}

	metrics.GeocodeRequestsTotal.WithLabelValues("success").Inc()
	g.logger.Debug("geocoded entity",
		zap.String("entity", entity),
		zap.Float64("lat", chosen.Location.Y),
		zap.Float64("lon", chosen.Location.X),
		zap.Int("zoom", zoom))

	return domain.Location{Lat: chosen.Location.Y, Lon: chosen.Location.X, Zoom: zoom}, nil
}

// get performs the HTTP request with retries on transport failures.
func (g *Geocoder) get(ctx context.Context, requestURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			g.logger.Warn("geocoding request failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("%v: %w", lastErr, domain.ErrGeocodeTransport)
}

// selectCandidate picks the first candidate inside the area of interest,
// falling back to the top-ranked candidate when none qualifies.
func selectCandidate(candidates []candidate, aoi *area.Area) candidate {
	if aoi == nil || !aoi.Valid() {
		return candidates[0]
	}
	for _, c := range candidates {
		if aoi.Contains(c.Location.Y, c.Location.X) {
			return c
		}
	}
	return candidates[0]
}

// Package geotag attaches coordinates to annotated entities and filters
// them against caller-supplied areas of interest.
package geotag

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
	"github.com/kailas-cloud/geotag/internal/domain/markup"
)

// Config holds geotagging options.
type Config struct {
	// CourtesyDelay is slept after every remote lookup so batches do not
	// hammer the geocoding service.
	CourtesyDelay time.Duration
}

// Service walks the canonical tags of annotated text and rewrites each
// with coordinates, or with sentinels when the entity cannot be resolved.
type Service struct {
	geocoder domain.Geocoder
	cfg      Config
	logger   *zap.Logger
}

// New creates the geotagging service.
func New(geocoder domain.Geocoder, cfg Config, logger *zap.Logger) *Service {
	return &Service{geocoder: geocoder, cfg: cfg, logger: logger}
}

// Geotag geocodes every bare canonical tag in order of appearance. The
// first valid area of interest biases candidate selection. An invalid
// credential is reported once, and every remaining entity in the text gets
// sentinel attributes; a transport failure aborts and propagates so the
// caller can decide whether the batch continues.
func (s *Service) Geotag(ctx context.Context, tagged string, areas []area.Area) (string, error) {
	matches := markup.BareCanonicalTagRe.FindAllStringSubmatchIndex(tagged, -1)
	if matches == nil {
		return tagged, nil
	}

	var aoi *area.Area
	if valid := area.Sanitize(areas); len(valid) > 0 {
		aoi = &valid[0]
	}

	var b strings.Builder
	last := 0
	credentialFailed := false
	for _, m := range matches {
		entity := tagged[m[2]:m[3]]
		b.WriteString(tagged[last:m[0]])
		last = m[1]

		if credentialFailed {
			b.WriteString(markup.FormatFailed(entity))
			continue
		}

		loc, err := s.geocoder.Geocode(ctx, entity, aoi)
		s.courtesyDelay(ctx)
		switch {
		case err == nil:
			b.WriteString(markup.FormatGeocoded(loc.Lat, loc.Lon, loc.Zoom, entity))
		case errors.Is(err, domain.ErrCredentialInvalid):
			s.logger.Error("geocoding credential invalid, disabling lookups for this text",
				zap.Error(err))
			credentialFailed = true
			b.WriteString(markup.FormatFailed(entity))
		case errors.Is(err, domain.ErrGeocodeTransport):
			return tagged, err
		default:
			s.logger.Debug("entity not geocoded", zap.String("entity", entity), zap.Error(err))
			b.WriteString(markup.FormatFailed(entity))
		}
	}
	b.WriteString(tagged[last:])
	return b.String(), nil
}

func (s *Service) courtesyDelay(ctx context.Context) {
	if s.cfg.CourtesyDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.cfg.CourtesyDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

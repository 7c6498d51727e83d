// Package pipeline wires annotation, geocoding, area filtering and
// rendering into the end-to-end text processing service.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
	"github.com/kailas-cloud/geotag/internal/usecase/render"
)

// Annotator detects geographic entities and tags them in place.
type Annotator interface {
	Annotate(ctx context.Context, text string) (string, bool)
}

// Geotagger resolves tagged entities to coordinates.
type Geotagger interface {
	Geotag(ctx context.Context, tagged string, areas []area.Area) (string, error)
}

// Result is the outcome of processing one input text.
type Result struct {
	Text        string `json:"text"`
	HasEntities bool   `json:"has_entities"`
}

// Service runs the full annotate, geocode, filter and render chain.
type Service struct {
	annotator Annotator
	geotagger Geotagger
	filter    func(tagged string, areas []area.Area, logger *zap.Logger) string
	logger    *zap.Logger
}

func New(annotator Annotator, geotagger Geotagger, filter func(string, []area.Area, *zap.Logger) string, logger *zap.Logger) *Service {
	return &Service{
		annotator: annotator,
		geotagger: geotagger,
		filter:    filter,
		logger:    logger,
	}
}

// TagText annotates and geocodes a single text. Processing failures are
// absorbed and the original input is returned unchanged, so a caller
// always gets usable text back.
func (s *Service) TagText(ctx context.Context, text string, areas []area.Area) string {
	res, err := s.tag(ctx, text, areas)
	if err != nil {
		s.logger.Error("tagging failed, returning original text", zap.Error(err))
		return text
	}
	return res.Text
}

// TagTexts processes a batch sequentially. Unlike TagText, a geocoding
// transport failure aborts the batch so the caller can retry it whole.
func (s *Service) TagTexts(ctx context.Context, texts []string, areas []area.Area) ([]Result, error) {
	results := make([]Result, 0, len(texts))
	for i, text := range texts {
		res, err := s.tag(ctx, text, areas)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RenderText runs TagText and rewrites resolved tags as map hyperlinks.
func (s *Service) RenderText(ctx context.Context, text string, areas []area.Area) string {
	res, err := s.tag(ctx, text, areas)
	if err != nil {
		s.logger.Error("rendering failed, returning original text", zap.Error(err))
		return text
	}
	return render.Hyperlinks(res.Text, s.logger)
}

// RenderTexts is the batch form of RenderText with TagTexts error semantics.
func (s *Service) RenderTexts(ctx context.Context, texts []string, areas []area.Area) ([]Result, error) {
	results, err := s.TagTexts(ctx, texts, areas)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Text = render.Hyperlinks(results[i].Text, s.logger)
	}
	return results, nil
}

func (s *Service) tag(ctx context.Context, text string, areas []area.Area) (Result, error) {
	tagged, found := s.annotator.Annotate(ctx, text)
	if !found {
		return Result{Text: text}, nil
	}

	// The geotag stage absorbs per-entity failures with sentinel tags
	// and only surfaces transport errors.
	geocoded, err := s.geotagger.Geotag(ctx, tagged, areas)
	if err != nil {
		if errors.Is(err, domain.ErrGeocodeTransport) {
			return Result{}, err
		}
		s.logger.Warn("geotagging degraded", zap.Error(err))
	}

	filtered := s.filter(geocoded, areas, s.logger)
	return Result{
		Text:        filtered,
		HasEntities: strings.Contains(filtered, "<LOC"),
	}, nil
}

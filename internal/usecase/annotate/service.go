// Package annotate runs the configured recognizers over plain text and
// produces canonical-labeled, non-nested entity markup.
package annotate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/markup"
	"github.com/kailas-cloud/geotag/internal/metrics"
)

// Config holds orchestration options.
type Config struct {
	// PlaceholderIsolation hides already-tagged spans from later passes.
	// With it off, passes run sequentially over raw markup and nested
	// tags may appear.
	PlaceholderIsolation bool
	// NestedTagRemoval flattens whatever nesting survives the passes.
	NestedTagRemoval bool
}

// Service coordinates recognizer passes in a fixed order. A failing pass
// is logged and skipped; remaining passes still run.
type Service struct {
	recognizers []domain.Recognizer
	cfg         Config
	logger      *zap.Logger
}

// New creates the orchestrator. The recognizer slice order is the
// execution order.
func New(recognizers []domain.Recognizer, cfg Config, logger *zap.Logger) *Service {
	return &Service{recognizers: recognizers, cfg: cfg, logger: logger}
}

// Annotate tags geographic entities in the text and reports whether any
// recognizer found one. The output carries only canonical labels and,
// with nested-tag removal enabled, no nested tags.
func (s *Service) Annotate(ctx context.Context, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return text, false
	}
	if len(s.recognizers) == 0 {
		s.logger.Warn("no recognizers configured")
		return text, false
	}

	var tagged string
	var found bool
	if s.cfg.PlaceholderIsolation {
		tagged, found = s.runIsolated(ctx, text)
	} else {
		tagged, found = s.runSequential(ctx, text)
	}

	normalized, _ := markup.Normalize(tagged, s.logger)
	if s.cfg.NestedTagRemoval {
		normalized = markup.ResolveNested(normalized)
	}
	return normalized, found
}

// runIsolated replaces existing tagged spans with opaque tokens before
// each pass so no recognizer can tag inside an earlier result, and
// restores all spans once at the end.
func (s *Service) runIsolated(ctx context.Context, text string) (string, bool) {
	current := text
	found := false
	var allPlaceholders []markup.Placeholder

	for _, rec := range s.recognizers {
		if !s.usable(rec) {
			continue
		}

		isolated, placeholders := markup.Isolate(current)
		tagged, passFound, err := rec.Detect(ctx, isolated)
		allPlaceholders = append(allPlaceholders, placeholders...)
		if err != nil {
			metrics.RecognizerPassesTotal.WithLabelValues(rec.Name(), "error").Inc()
			s.logger.Error("recognizer pass failed",
				zap.String("recognizer", rec.Name()),
				zap.Error(err))
			current = tagged
			continue
		}

		metrics.RecognizerPassesTotal.WithLabelValues(rec.Name(), "success").Inc()
		if passFound {
			metrics.RecognizerEntitiesTotal.WithLabelValues(rec.Name()).Inc()
			s.logger.Debug("recognizer found entities", zap.String("recognizer", rec.Name()))
		}
		current = tagged
		found = found || passFound
	}

	return markup.Restore(current, allPlaceholders), found
}

// runSequential feeds each pass the raw output of the previous one.
func (s *Service) runSequential(ctx context.Context, text string) (string, bool) {
	current := text
	found := false

	for _, rec := range s.recognizers {
		if !s.usable(rec) {
			continue
		}

		tagged, passFound, err := rec.Detect(ctx, current)
		if err != nil {
			metrics.RecognizerPassesTotal.WithLabelValues(rec.Name(), "error").Inc()
			s.logger.Error("recognizer pass failed",
				zap.String("recognizer", rec.Name()),
				zap.Error(err))
			current = tagged
			continue
		}

		metrics.RecognizerPassesTotal.WithLabelValues(rec.Name(), "success").Inc()
		if passFound {
			metrics.RecognizerEntitiesTotal.WithLabelValues(rec.Name()).Inc()
		}
		current = tagged
		found = found || passFound
	}

	return current, found
}

func (s *Service) usable(rec domain.Recognizer) bool {
	if !rec.Available() {
		s.logger.Warn("recognizer not available, skipping", zap.String("recognizer", rec.Name()))
		return false
	}
	return true
}

// Package hugot implements the statistical NER recognizer running an ONNX
// token classification model in process.
package hugot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
)

// Compile-time check: Recognizer implements domain.Recognizer.
var _ domain.Recognizer = (*Recognizer)(nil)

// Config holds parameters for the statistical recognizer.
type Config struct {
	Model          string
	ModelDir       string
	TargetEntities []string
	Logger         *zap.Logger
}

// Recognizer tags entities detected by a token classification model. The
// model is downloaded on first use and loaded into an in-process session.
type Recognizer struct {
	pipeline *pipelines.TokenClassificationPipeline
	session  *hugot.Session
	targets  map[string]bool
	logger   *zap.Logger
}

// span is one entity occurrence by byte offsets into the source text.
type span struct {
	label      string
	start, end int
}

// New creates the recognizer, downloading the model if it is not present
// in the model directory.
func New(cfg Config) (*Recognizer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	modelPath, err := prepareModel(cfg.Model, cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	pipelineCfg := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "geotag-ner",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, pipelineCfg)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create ner pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create ner pipeline: %w", err)
	}

	targets := make(map[string]bool, len(cfg.TargetEntities))
	for _, t := range cfg.TargetEntities {
		targets[t] = true
	}

	logger.Info("loaded ner model", zap.String("model", cfg.Model), zap.String("path", modelPath))

	return &Recognizer{
		pipeline: nerPipeline,
		session:  session,
		targets:  targets,
		logger:   logger,
	}, nil
}

// prepareModel downloads the model if it does not exist and returns its path.
func prepareModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloadedPath, nil
}

// Name identifies the recognizer in configuration and logs.
func (r *Recognizer) Name() string { return "ner" }

// Available reports whether the model pipeline is loaded.
func (r *Recognizer) Available() bool { return r.pipeline != nil }

// Detect runs the model over the text and tags every target entity at its
// reported offsets.
func (r *Recognizer) Detect(ctx context.Context, text string) (string, bool, error) {
	if strings.TrimSpace(text) == "" {
		return text, false, nil
	}
	if r.pipeline == nil {
		return text, false, domain.ErrRecognizerUnavailable
	}
	if err := ctx.Err(); err != nil {
		return text, false, err
	}

	result, err := r.pipeline.RunPipeline([]string{text})
	if err != nil {
		return text, false, fmt.Errorf("run ner pipeline: %w", err)
	}
	if len(result.Entities) == 0 {
		return text, false, nil
	}

	var spans []span
	for _, entity := range result.Entities[0] {
		label := normalizeLabel(entity.Entity)
		if !r.targets[label] {
			continue
		}
		start, end := int(entity.Start), int(entity.End)
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		spans = append(spans, span{label: label, start: start, end: end})
	}
	if len(spans) == 0 {
		return text, false, nil
	}

	r.logger.Debug("tagged entities", zap.Int("count", len(spans)))
	return tagSpans(text, spans), true, nil
}

// Close releases the model session.
func (r *Recognizer) Close() error {
	if r.session == nil {
		return nil
	}
	return r.session.Destroy()
}

// tagSpans splices tags around the spans, processed from the end of the
// text backward so earlier offsets stay valid. Overlapping spans keep the
// earlier span and drop the rest.
func tagSpans(text string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	kept := spans[:0]
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		kept = append(kept, s)
		lastEnd = s.end
	}

	tagged := text
	for i := len(kept) - 1; i >= 0; i-- {
		s := kept[i]
		tagged = tagged[:s.start] + "<" + s.label + ">" + tagged[s.start:s.end] + "</" + s.label + ">" + tagged[s.end:]
	}
	return tagged
}

// normalizeLabel removes BIO tagging prefixes (B- for beginning, I- for inside).
func normalizeLabel(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}

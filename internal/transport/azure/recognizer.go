// Package azure implements the cloud NER recognizer backed by the Azure
// Text Analytics entity recognition API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
)

const apiPath = "text/analytics/v3.0/entities/recognition/general"

// Compile-time check: Recognizer implements domain.Recognizer.
var _ domain.Recognizer = (*Recognizer)(nil)

// Config holds parameters for the cloud recognizer.
type Config struct {
	APIKey              string
	Endpoint            string
	TargetEntities      []string
	ConfidenceThreshold float64
	Timeout             time.Duration
	Logger              *zap.Logger
}

// Recognizer detects geographic entities through the Text Analytics API
// and tags them in the source text by their reported offsets.
type Recognizer struct {
	apiKey    string
	apiURL    string
	targets   map[string]bool
	threshold float64
	client    *http.Client
	logger    *zap.Logger
}

// New creates a cloud recognizer.
func New(cfg Config) *Recognizer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	targets := make(map[string]bool, len(cfg.TargetEntities))
	for _, t := range cfg.TargetEntities {
		targets[t] = true
	}
	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Recognizer{
		apiKey:    cfg.APIKey,
		apiURL:    endpoint + apiPath,
		targets:   targets,
		threshold: cfg.ConfidenceThreshold,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

// Name identifies the recognizer in configuration and logs.
func (r *Recognizer) Name() string { return "cloud" }

// Available reports whether credentials are configured.
func (r *Recognizer) Available() bool {
	return r.apiKey != "" && r.apiURL != apiPath
}

type apiEntity struct {
	Text            string  `json:"text"`
	Category        string  `json:"category"`
	Offset          int     `json:"offset"`
	Length          int     `json:"length"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

type apiResponse struct {
	Documents []struct {
		Entities []apiEntity `json:"entities"`
	} `json:"documents"`
}

// Detect runs the whole text through the entity recognition endpoint once
// and tags every entity that passes the category and confidence filters.
// A transport or decoding failure yields the input unchanged with the
// error, so the orchestrator can continue with later passes.
func (r *Recognizer) Detect(ctx context.Context, text string) (string, bool, error) {
	if strings.TrimSpace(text) == "" {
		return text, false, nil
	}
	if !r.Available() {
		return text, false, domain.ErrRecognizerUnavailable
	}

	entities, err := r.callAPI(ctx, text)
	if err != nil {
		return text, false, err
	}

	var accepted []apiEntity
	for _, e := range entities {
		if r.targets[e.Category] && e.ConfidenceScore >= r.threshold {
			accepted = append(accepted, e)
		} else {
			r.logger.Debug("filtered out entity",
				zap.String("text", e.Text),
				zap.String("category", e.Category),
				zap.Float64("confidence", e.ConfidenceScore))
		}
	}
	if len(accepted) == 0 {
		return text, false, nil
	}

	return insertTags(text, accepted), true, nil
}

func (r *Recognizer) callAPI(ctx context.Context, text string) ([]apiEntity, error) {
	payload, err := json.Marshal(map[string]any{
		"documents": []map[string]string{
			{"id": "1", "language": "en", "text": text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrCredentialInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, domain.ErrMalformedResponse)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", domain.ErrMalformedResponse)
	}
	if len(parsed.Documents) == 0 {
		return nil, fmt.Errorf("no documents in response: %w", domain.ErrMalformedResponse)
	}
	return parsed.Documents[0].Entities, nil
}

// insertTags rebuilds the text with markup spliced in at the reported
// offsets, processed in ascending order. Offsets count characters, not
// bytes, so the text is handled as runes.
func insertTags(text string, entities []apiEntity) string {
	sort.Slice(entities, func(i, j int) bool { return entities[i].Offset < entities[j].Offset })

	runes := []rune(text)
	var b strings.Builder
	last := 0
	for _, e := range entities {
		start, end := e.Offset, e.Offset+e.Length
		if start < last || end > len(runes) {
			continue
		}
		b.WriteString(string(runes[last:start]))
		b.WriteString(tagFor(e.Category, string(runes[start:end])))
		last = end
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}

// tagFor maps an API category to the recognizer tag vocabulary.
func tagFor(category, entityText string) string {
	switch category {
	case "Location":
		return "<LOC>" + entityText + "</LOC>"
	case "Address":
		return "<address>" + entityText + "</address>"
	default:
		label := strings.ToLower(category)
		return "<" + label + ">" + entityText + "</" + label + ">"
	}
}

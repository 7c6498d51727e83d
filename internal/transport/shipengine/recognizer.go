// Package shipengine implements the address recognizer backed by the
// ShipEngine address recognition API, with a regex fallback for
// deployments without an API key.
package shipengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
)

// DefaultBaseURL is the production ShipEngine endpoint.
const DefaultBaseURL = "https://api.shipengine.com"

// Compile-time check: Recognizer implements domain.Recognizer.
var _ domain.Recognizer = (*Recognizer)(nil)

// addressEntityTypes are the ShipEngine entity classes that together span
// the address text inside a sentence.
var addressEntityTypes = map[string]bool{
	"address":        true,
	"address_line":   true,
	"city_locality":  true,
	"state_province": true,
	"postal_code":    true,
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

// Config holds parameters for the address recognizer.
type Config struct {
	APIKey         string
	BaseURL        string
	EnableFallback bool
	Timeout        time.Duration
	Logger         *zap.Logger
}

// Recognizer detects postal addresses and wraps them in <address> tags.
// With an API key each sentence is sent to the recognition endpoint; without
// one, and when the fallback is enabled, structural regex patterns are
// applied instead.
type Recognizer struct {
	apiKey         string
	baseURL        string
	enableFallback bool
	client         *http.Client
	logger         *zap.Logger
}

// New creates an address recognizer.
func New(cfg Config) *Recognizer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Recognizer{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		enableFallback: cfg.EnableFallback,
		client:         &http.Client{Timeout: cfg.Timeout},
		logger:         logger,
	}
}

// Name identifies the recognizer in configuration and logs.
func (r *Recognizer) Name() string { return "address" }

// Available reports whether either the API or the regex fallback can run.
func (r *Recognizer) Available() bool {
	return r.apiKey != "" || r.enableFallback
}

// Detect tags addresses in the text. API failures for individual sentences
// are logged and skipped; an invalid key aborts the API pass. The result
// reports whether at least one address was tagged.
func (r *Recognizer) Detect(ctx context.Context, text string) (string, bool, error) {
	if strings.TrimSpace(text) == "" {
		return text, false, nil
	}

	if r.apiKey != "" {
		tagged, found, err := r.detectViaAPI(ctx, text)
		if err == nil || found {
			return tagged, found, err
		}
		if !r.enableFallback {
			return text, false, err
		}
		r.logger.Warn("address api failed, using regex fallback", zap.Error(err))
	} else if !r.enableFallback {
		return text, false, domain.ErrRecognizerUnavailable
	}

	tagged := TagAddressesWithPatterns(text)
	return tagged, strings.Contains(tagged, "<address>"), nil
}

type recognizeResponse struct {
	Score    float64         `json:"score"`
	Address  json.RawMessage `json:"address"`
	Entities []struct {
		Type       string `json:"type"`
		StartIndex int    `json:"start_index"`
		EndIndex   int    `json:"end_index"`
		Text       string `json:"text"`
	} `json:"entities"`
}

// detectViaAPI sends each sentence to the recognition endpoint and tags the
// covering address span of every positive response in the running text.
func (r *Recognizer) detectViaAPI(ctx context.Context, text string) (string, bool, error) {
	tagged := text
	found := false

	for _, sentence := range splitSentences(text) {
		resp, err := r.recognizeSentence(ctx, sentence)
		if err != nil {
			if errors.Is(err, domain.ErrCredentialInvalid) {
				return tagged, found, err
			}
			r.logger.Warn("address recognition failed for sentence", zap.Error(err))
			continue
		}
		if resp == nil || len(resp.Address) == 0 || string(resp.Address) == "null" {
			continue
		}

		addr := extractAddressText(resp, sentence)
		if addr == "" {
			continue
		}
		tagged = tagFirstOccurrence(tagged, addr)
		found = true
		r.logger.Debug("tagged address", zap.String("address", addr))
	}

	return tagged, found, nil
}

// recognizeSentence performs one PUT /v1/addresses/recognize call.
func (r *Recognizer) recognizeSentence(ctx context.Context, sentence string) (*recognizeResponse, error) {
	payload, err := json.Marshal(map[string]string{"text": sentence})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.baseURL+"/v1/addresses/recognize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("API-Key", r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("invalid api key: %w", domain.ErrCredentialInvalid)
	case http.StatusPaymentRequired:
		r.logger.Warn("address recognition requires a higher service plan")
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}

// extractAddressText recovers the original address substring of the
// sentence as the span covering every address-class entity. Spans that are
// too short or carry no digit are rejected.
func extractAddressText(resp *recognizeResponse, sentence string) string {
	minStart, maxEnd := -1, -1
	for _, e := range resp.Entities {
		if !addressEntityTypes[e.Type] {
			continue
		}
		if minStart < 0 || e.StartIndex < minStart {
			minStart = e.StartIndex
		}
		if e.EndIndex > maxEnd {
			maxEnd = e.EndIndex
		}
	}
	if minStart < 0 || maxEnd > len(sentence) || minStart >= maxEnd {
		return ""
	}

	addr := strings.TrimSpace(sentence[minStart:maxEnd])
	if len(addr) > 10 && containsDigit(addr) {
		return addr
	}
	return ""
}

// tagFirstOccurrence wraps the first literal occurrence of addr in an
// address tag.
func tagFirstOccurrence(text, addr string) string {
	return strings.Replace(text, addr, "<address>"+addr+"</address>", 1)
}

func splitSentences(text string) []string {
	var sentences []string
	for _, s := range sentenceSplitRe.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

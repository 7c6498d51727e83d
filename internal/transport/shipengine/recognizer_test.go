package shipengine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/geotag/internal/domain"
)

func newTestRecognizer(t *testing.T, handler http.HandlerFunc) *Recognizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
}

func TestDetect_TagsRecognizedAddress(t *testing.T) {
	rec := newTestRecognizer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.Header.Get("API-Key") != "test-key" {
			t.Errorf("missing API-Key header")
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		sentence := body["text"]
		addr := "123 Main Street, Anytown, CA 90210"
		idx := strings.Index(sentence, addr)
		if idx < 0 {
			w.Write([]byte(`{"score":0,"address":null,"entities":[]}`))
			return
		}
		resp := map[string]any{
			"score":   0.9,
			"address": map[string]string{"address_line1": "123 Main Street"},
			"entities": []map[string]any{
				{"type": "address_line", "start_index": idx, "end_index": idx + 15, "text": "123 Main Street"},
				{"type": "postal_code", "start_index": idx + len(addr) - 5, "end_index": idx + len(addr), "text": "90210"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	text := "John lives at 123 Main Street, Anytown, CA 90210. The meeting is in New York."
	tagged, found, err := rec.Detect(context.Background(), text)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !found {
		t.Fatal("expected an address to be found")
	}
	if !strings.Contains(tagged, "<address>123 Main Street, Anytown, CA 90210</address>") {
		t.Errorf("address not tagged: %q", tagged)
	}
}

func TestDetect_ShortSpanRejected(t *testing.T) {
	rec := newTestRecognizer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"score":   0.5,
			"address": map[string]string{"postal_code": "90210"},
			"entities": []map[string]any{
				{"type": "postal_code", "start_index": 0, "end_index": 5, "text": "90210"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	tagged, found, err := rec.Detect(context.Background(), "90210 is a TV show")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if found || strings.Contains(tagged, "<address>") {
		t.Errorf("short span should be rejected: %q", tagged)
	}
}

func TestDetect_InvalidKey(t *testing.T) {
	rec := newTestRecognizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, found, err := rec.Detect(context.Background(), "Ship to 123 Main Street, Anytown, CA 90210")
	if !errors.Is(err, domain.ErrCredentialInvalid) {
		t.Errorf("expected ErrCredentialInvalid, got %v", err)
	}
	if found {
		t.Error("no address should be found on credential failure")
	}
}

func TestDetect_PlanRequiredTreatedAsNoMatch(t *testing.T) {
	rec := newTestRecognizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})

	tagged, found, err := rec.Detect(context.Background(), "Ship to 123 Main Street, Anytown, CA 90210.")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if found || strings.Contains(tagged, "<address>") {
		t.Errorf("402 should yield no entities: %q", tagged)
	}
}

func TestDetect_FallbackWithoutKey(t *testing.T) {
	rec := New(Config{EnableFallback: true})

	text := "Our office is at 456 Oak Avenue, Los Angeles, CA 90001."
	tagged, found, err := rec.Detect(context.Background(), text)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !found {
		t.Fatal("fallback should find the address")
	}
	if !strings.Contains(tagged, "<address>") {
		t.Errorf("fallback did not tag: %q", tagged)
	}
}

func TestDetect_NoKeyNoFallback(t *testing.T) {
	rec := New(Config{})

	if rec.Available() {
		t.Error("recognizer without key or fallback should be unavailable")
	}
	_, _, err := rec.Detect(context.Background(), "123 Main Street, Anytown, CA 90210")
	if !errors.Is(err, domain.ErrRecognizerUnavailable) {
		t.Errorf("expected ErrRecognizerUnavailable, got %v", err)
	}
}

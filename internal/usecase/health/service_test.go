package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockCachePinger struct {
	err error
}

func (m *mockCachePinger) Ping(_ context.Context) error { return m.err }

type mockRecognizer struct {
	name      string
	available bool
}

func (m *mockRecognizer) Name() string    { return m.name }
func (m *mockRecognizer) Available() bool { return m.available }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockCachePinger{}, []Recognizer{&mockRecognizer{name: "ner", available: true}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
	if r.Checks["recognizer:ner"] != CheckOK {
		t.Errorf("expected recognizer %q, got %q", CheckOK, r.Checks["recognizer:ner"])
	}
}

func TestCheck_CacheError(t *testing.T) {
	svc := New(&mockCachePinger{err: errors.New("conn refused")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
}

func TestCheck_RecognizerUnavailable(t *testing.T) {
	svc := New(nil, []Recognizer{
		&mockRecognizer{name: "ner", available: true},
		&mockRecognizer{name: "address", available: false},
	})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["recognizer:ner"] != CheckOK {
		t.Error("expected ner recognizer to pass")
	}
	if r.Checks["recognizer:address"] != CheckError {
		t.Error("expected address recognizer to fail")
	}
}

func TestCheck_NoCache(t *testing.T) {
	svc := New(nil, []Recognizer{&mockRecognizer{name: "ner", available: true}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["cache"]; ok {
		t.Error("cache check should be absent when caching is disabled")
	}
}

func TestCheck_NoComponents(t *testing.T) {
	svc := New(nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 0 {
		t.Errorf("expected no checks, got %v", r.Checks)
	}
}

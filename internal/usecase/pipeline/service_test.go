package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
)

type mockAnnotator struct {
	out   string
	found bool
}

func (m *mockAnnotator) Annotate(context.Context, string) (string, bool) {
	return m.out, m.found
}

type mockGeotagger struct {
	out   string
	err   error
	calls int
}

func (m *mockGeotagger) Geotag(_ context.Context, tagged string, _ []area.Area) (string, error) {
	m.calls++
	if m.err != nil {
		return tagged, m.err
	}
	return m.out, nil
}

func passthroughFilter(tagged string, _ []area.Area, _ *zap.Logger) string {
	return tagged
}

func TestTagText_FullChain(t *testing.T) {
	ann := &mockAnnotator{out: "go to <LOC>Paris</LOC>", found: true}
	geo := &mockGeotagger{out: `go to <LOC lat="48.8566" lon="2.3522" zoom_level="11">Paris</LOC>`}
	svc := New(ann, geo, passthroughFilter, zap.NewNop())

	got := svc.TagText(context.Background(), "go to Paris", nil)
	if got != geo.out {
		t.Errorf("TagText() = %q, want %q", got, geo.out)
	}
}

func TestTagText_NoEntitiesSkipsGeocoding(t *testing.T) {
	ann := &mockAnnotator{out: "plain text", found: false}
	geo := &mockGeotagger{}
	svc := New(ann, geo, passthroughFilter, zap.NewNop())

	got := svc.TagText(context.Background(), "plain text", nil)
	if got != "plain text" {
		t.Errorf("TagText() = %q", got)
	}
	if geo.calls != 0 {
		t.Error("geocoder should not run without entities")
	}
}

func TestTagText_TransportFailureReturnsOriginal(t *testing.T) {
	ann := &mockAnnotator{out: "go to <LOC>Paris</LOC>", found: true}
	geo := &mockGeotagger{err: domain.ErrGeocodeTransport}
	svc := New(ann, geo, passthroughFilter, zap.NewNop())

	got := svc.TagText(context.Background(), "go to Paris", nil)
	if got != "go to Paris" {
		t.Errorf("original input should come back untouched, got %q", got)
	}
}

func TestTagTexts_TransportFailureAbortsBatch(t *testing.T) {
	ann := &mockAnnotator{out: "<LOC>Paris</LOC>", found: true}
	geo := &mockGeotagger{err: domain.ErrGeocodeTransport}
	svc := New(ann, geo, passthroughFilter, zap.NewNop())

	results, err := svc.TagTexts(context.Background(), []string{"a", "b"}, nil)
	if !errors.Is(err, domain.ErrGeocodeTransport) {
		t.Fatalf("expected ErrGeocodeTransport, got %v", err)
	}
	if results != nil {
		t.Errorf("no partial results on abort, got %v", results)
	}
}

func TestTagTexts_HasEntitiesReflectsFilteredOutput(t *testing.T) {
	ann := &mockAnnotator{out: "<LOC>Paris</LOC>", found: true}
	geo := &mockGeotagger{out: `<LOC lat="48.85" lon="2.35" zoom_level="11">Paris</LOC>`}

	stripAll := func(tagged string, _ []area.Area, _ *zap.Logger) string {
		return "Paris"
	}
	svc := New(ann, geo, stripAll, zap.NewNop())

	results, err := svc.TagTexts(context.Background(), []string{"Paris"}, nil)
	if err != nil {
		t.Fatalf("TagTexts() error = %v", err)
	}
	if results[0].HasEntities {
		t.Error("HasEntities should be false once the filter strips every tag")
	}

	svc = New(ann, geo, passthroughFilter, zap.NewNop())
	results, err = svc.TagTexts(context.Background(), []string{"Paris"}, nil)
	if err != nil {
		t.Fatalf("TagTexts() error = %v", err)
	}
	if !results[0].HasEntities {
		t.Error("HasEntities should be true when tags survive")
	}
}

func TestRenderText_ProducesHyperlinks(t *testing.T) {
	ann := &mockAnnotator{out: "<LOC>Paris</LOC>", found: true}
	geo := &mockGeotagger{out: `<LOC lat="48.85" lon="2.35" zoom_level="11">Paris</LOC>`}
	svc := New(ann, geo, passthroughFilter, zap.NewNop())

	got := svc.RenderText(context.Background(), "Paris", nil)
	if !strings.Contains(got, `<a href="https://www.arcgis.com/apps/mapviewer/index.html?center=2.35,48.85&level=11`) {
		t.Errorf("expected a map hyperlink, got %q", got)
	}
	if strings.Contains(got, "<LOC") {
		t.Errorf("no raw tags should remain after rendering: %q", got)
	}
}

func TestRenderTexts_Batch(t *testing.T) {
	ann := &mockAnnotator{out: "<LOC>Paris</LOC>", found: true}
	geo := &mockGeotagger{out: `<LOC lat="48.85" lon="2.35" zoom_level="11">Paris</LOC>`}
	svc := New(ann, geo, passthroughFilter, zap.NewNop())

	results, err := svc.RenderTexts(context.Background(), []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("RenderTexts() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !strings.Contains(r.Text, "<a href=") {
			t.Errorf("expected hyperlink in %q", r.Text)
		}
	}
}

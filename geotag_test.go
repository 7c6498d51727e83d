package geotag

import (
	"context"
	"testing"
)

func TestNew_NoRecognizers(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	// Without recognizers nothing is annotated, so no network call happens.
	got, err := client.TagText(context.Background(), "meet me in Paris", nil)
	if err != nil {
		t.Fatalf("TagText() error = %v", err)
	}
	if got != "meet me in Paris" {
		t.Errorf("TagText() = %q", got)
	}
}

func TestNew_RegistersPipelineMetrics(t *testing.T) {
	// New registers the pipeline metrics so the cache decorator has a live
	// hit/miss counter. A second client must not re-register.
	for i := 0; i < 2; i++ {
		client, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		client.Close()
	}
}

func TestTagTexts_EmptyBatch(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	results, err := client.TagTexts(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("TagTexts() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
}

func TestToInternalAreas(t *testing.T) {
	if toInternalAreas(nil) != nil {
		t.Error("nil input should map to nil")
	}

	got := toInternalAreas([]Area{{MinLat: 1, MaxLat: 2, MinLon: 3, MaxLon: 4}})
	if len(got) != 1 {
		t.Fatalf("expected 1 area, got %d", len(got))
	}
	if got[0].MinLat != 1 || got[0].MaxLat != 2 || got[0].MinLon != 3 || got[0].MaxLon != 4 {
		t.Errorf("area fields not carried over: %+v", got[0])
	}
}

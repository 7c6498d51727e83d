package geotag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
)

// mockGeocoder resolves from a fixed table and fails everything else.
type mockGeocoder struct {
	locations map[string]domain.Location
	err       error
	calls     []string
	sawArea   *area.Area
}

func (m *mockGeocoder) Geocode(_ context.Context, entity string, aoi *area.Area) (domain.Location, error) {
	m.calls = append(m.calls, entity)
	m.sawArea = aoi
	if m.err != nil {
		return domain.Location{}, m.err
	}
	loc, ok := m.locations[entity]
	if !ok {
		return domain.Location{}, domain.ErrNoCandidates
	}
	return loc, nil
}

func newService(g domain.Geocoder) *Service {
	return New(g, Config{}, zap.NewNop())
}

func TestGeotag_ResolvesEntities(t *testing.T) {
	g := &mockGeocoder{locations: map[string]domain.Location{
		"Paris": {Lat: 48.8566, Lon: 2.3522, Zoom: 11},
		"Lyon":  {Lat: 45.764, Lon: 4.8357, Zoom: 12},
	}}
	svc := newService(g)

	got, err := svc.Geotag(context.Background(), "I visited <LOC>Paris</LOC> and <LOC>Lyon</LOC>.", nil)
	if err != nil {
		t.Fatalf("Geotag() error = %v", err)
	}
	want := `I visited <LOC lat="48.8566" lon="2.3522" zoom_level="11">Paris</LOC> and <LOC lat="45.764" lon="4.8357" zoom_level="12">Lyon</LOC>.`
	if got != want {
		t.Errorf("Geotag() = %q, want %q", got, want)
	}
	if len(g.calls) != 2 {
		t.Errorf("expected 2 lookups, got %v", g.calls)
	}
}

func TestGeotag_UnresolvedGetsSentinels(t *testing.T) {
	svc := newService(&mockGeocoder{locations: map[string]domain.Location{}})

	got, err := svc.Geotag(context.Background(), "lost <LOC>Atlantis</LOC> forever", nil)
	if err != nil {
		t.Fatalf("Geotag() error = %v", err)
	}
	want := `lost <LOC lat="none" lon="none" zoom_level="none">Atlantis</LOC> forever`
	if got != want {
		t.Errorf("Geotag() = %q, want %q", got, want)
	}
}

func TestGeotag_CredentialFailureContinues(t *testing.T) {
	g := &mockGeocoder{err: domain.ErrCredentialInvalid}
	svc := newService(g)

	got, err := svc.Geotag(context.Background(), "<LOC>Paris</LOC> and <LOC>Lyon</LOC>", nil)
	if err != nil {
		t.Fatalf("credential failure must not abort the text: %v", err)
	}
	if strings.Count(got, `lat="none"`) != 2 {
		t.Errorf("both entities should carry sentinels: %q", got)
	}
	if len(g.calls) != 1 {
		t.Errorf("no further lookups after a credential failure, got %v", g.calls)
	}
}

func TestGeotag_TransportFailurePropagates(t *testing.T) {
	g := &mockGeocoder{err: domain.ErrGeocodeTransport}
	svc := newService(g)

	got, err := svc.Geotag(context.Background(), "<LOC>Paris</LOC>", nil)
	if !errors.Is(err, domain.ErrGeocodeTransport) {
		t.Fatalf("expected ErrGeocodeTransport, got %v", err)
	}
	if got != "<LOC>Paris</LOC>" {
		t.Errorf("input should be returned unchanged on transport failure: %q", got)
	}
}

func TestGeotag_FirstValidAreaBiasesSelection(t *testing.T) {
	g := &mockGeocoder{locations: map[string]domain.Location{
		"Paris": {Lat: 48.8566, Lon: 2.3522, Zoom: 11},
	}}
	svc := newService(g)

	areas := []area.Area{
		{MinLat: 1, MaxLat: 0, MinLon: 0, MaxLon: 1}, // invalid, skipped
		{MinLat: 40, MaxLat: 55, MinLon: -5, MaxLon: 10},
	}
	if _, err := svc.Geotag(context.Background(), "<LOC>Paris</LOC>", areas); err != nil {
		t.Fatalf("Geotag() error = %v", err)
	}
	if g.sawArea == nil || g.sawArea.MinLat != 40 {
		t.Errorf("expected the first valid area, got %+v", g.sawArea)
	}
}

func TestGeotag_NoTagsIsNoOp(t *testing.T) {
	g := &mockGeocoder{}
	svc := newService(g)

	got, err := svc.Geotag(context.Background(), "no entities here", nil)
	if err != nil || got != "no entities here" {
		t.Errorf("unexpected result: %q, %v", got, err)
	}
	if len(g.calls) != 0 {
		t.Error("no lookup should happen without tags")
	}
}

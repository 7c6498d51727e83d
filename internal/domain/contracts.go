package domain

import (
	"context"

	"github.com/kailas-cloud/geotag/internal/domain/area"
)

// Location is a geocoded point with a map zoom level derived from the
// candidate's bounding extent.
type Location struct {
	Lat  float64
	Lon  float64
	Zoom int
}

// Recognizer detects geographic entities in plain text and wraps each
// occurrence in an inline markup tag. Detect returns the tagged text and
// whether any entity was found. A failed pass returns the input unchanged
// together with the error so the caller can continue with later passes.
type Recognizer interface {
	// Name identifies the recognizer in configuration and logs.
	Name() string
	// Available reports whether the recognizer can run at all.
	Available() bool
	Detect(ctx context.Context, text string) (tagged string, found bool, err error)
}

// Geocoder resolves an entity's text to a location. A non-nil aoi biases
// candidate selection toward that area. Absence of a result is reported
// as ErrNoCandidates.
type Geocoder interface {
	Geocode(ctx context.Context, entity string, aoi *area.Area) (Location, error)
}

// Package extent derives map zoom levels from the bounding extent a
// geocoding candidate carries.
package extent

import "math"

// DefaultZoom is used when an extent is absent or unusable.
const DefaultZoom = 16

// Extent is a candidate's bounding box in geographic coordinates.
type Extent struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Thresholds map the widest extent dimension (in degrees, after a 10%
// margin) to a web-map zoom level. Each step halves the previous span.
var zoomThresholds = []struct {
	minDelta float64
	zoom     int
}{
	{106, 2},
	{53, 3},
	{26.5, 4},
	{13.25, 5},
	{6.625, 6},
	{3.3125, 7},
	{1.65625, 8},
	{0.828125, 9},
	{0.4140625, 10},
	{0.20703125, 11},
	{0.103515625, 12},
	{0.0517578125, 13},
	{0.02587890625, 14},
	{0.012939453125, 15},
}

// Zoom picks the zoom level for the extent. Anything narrower than the
// smallest threshold, and any degenerate extent, maps to DefaultZoom.
func (e Extent) Zoom() int {
	delta := e.maxDelta()
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return DefaultZoom
	}
	for _, t := range zoomThresholds {
		if delta >= t.minDelta {
			return t.zoom
		}
	}
	return DefaultZoom
}

// maxDelta returns the larger of the latitude and longitude spans, widened
// by 10% so boundary cases zoom out one level.
func (e Extent) maxDelta() float64 {
	deltaLat := math.Abs(e.YMax - e.YMin)
	deltaLon := longitudeDelta(e.XMin, e.XMax)
	return math.Max(deltaLat, deltaLon) * 1.1
}

// longitudeDelta measures the longitude span, picking the shorter arc when
// the bounds straddle the prime meridian or the antimeridian.
func longitudeDelta(xmin, xmax float64) float64 {
	xmin = normalizeLongitude(xmin)
	xmax = normalizeLongitude(xmax)

	if (xmin < 0 && xmax > 0) || (xmin > 0 && xmax < 0) {
		absSum := math.Abs(xmin) + math.Abs(xmax)
		if absSum <= 180 {
			return absSum
		}
		return 360 - absSum
	}
	return math.Abs(xmax - xmin)
}

// normalizeLongitude folds a longitude into the [-180, 180] range. Exact
// ±180 is kept as is.
func normalizeLongitude(lon float64) float64 {
	if lon == 180 || lon == -180 {
		return lon
	}
	normalized := math.Mod(lon+180, 360)
	if normalized < 0 {
		normalized += 360
	}
	return normalized - 180
}

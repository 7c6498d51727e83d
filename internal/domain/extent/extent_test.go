package extent

import "testing"

func TestZoom(t *testing.T) {
	tests := []struct {
		name   string
		extent Extent
		want   int
	}{
		// Roughly California: ~10 degrees of latitude, ~11 of longitude.
		{"state sized", Extent{XMin: -124, YMin: 32, XMax: -113, YMax: 42}, 6},
		// A city block maps to the tightest zoom.
		{"city block", Extent{XMin: -122.401, YMin: 37.793, XMax: -122.400, YMax: 37.794}, 16},
		{"hemisphere", Extent{XMin: -90, YMin: -60, XMax: 90, YMax: 60}, 2},
		{"zero extent", Extent{XMin: 10, YMin: 10, XMax: 10, YMax: 10}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.extent.Zoom(); got != tt.want {
				t.Errorf("Zoom() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestZoom_BoundaryMarginZoomsOut(t *testing.T) {
	// A span just below a threshold crosses it after the 10% margin, so
	// the coarser zoom wins.
	e := Extent{XMin: 0, YMin: 0, XMax: 3.1, YMax: 0}
	if got := e.Zoom(); got != 7 {
		t.Errorf("Zoom() = %d, want 7", got)
	}
}

func TestLongitudeDelta(t *testing.T) {
	tests := []struct {
		name       string
		xmin, xmax float64
		want       float64
	}{
		{"same sign", -123, -122, 1},
		{"prime meridian crossing", -10, 20, 30},
		{"antimeridian crossing", 170, -170, 20},
		{"normalized out of range input", 370, 380, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := longitudeDelta(tt.xmin, tt.xmax); got != tt.want {
				t.Errorf("longitudeDelta(%v, %v) = %v, want %v", tt.xmin, tt.xmax, got, tt.want)
			}
		})
	}
}

func TestNormalizeLongitude_KeepsExactAntimeridian(t *testing.T) {
	if got := normalizeLongitude(180); got != 180 {
		t.Errorf("normalizeLongitude(180) = %v, want 180", got)
	}
	if got := normalizeLongitude(-180); got != -180 {
		t.Errorf("normalizeLongitude(-180) = %v, want -180", got)
	}
}

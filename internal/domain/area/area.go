// Package area defines rectangular areas of interest used to bias
// geocoding and to filter annotated entities by location.
package area

// Area is a latitude/longitude bounding rectangle. Bounds are inclusive.
type Area struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Valid reports whether the rectangle is well formed: minimums strictly
// below maximums and all bounds within geographic range.
func (a Area) Valid() bool {
	if a.MinLat >= a.MaxLat || a.MinLon >= a.MaxLon {
		return false
	}
	if a.MinLat < -90 || a.MaxLat > 90 {
		return false
	}
	if a.MinLon < -180 || a.MaxLon > 180 {
		return false
	}
	return true
}

// Contains reports whether the point lies inside the rectangle. Points on
// the boundary count as inside.
func (a Area) Contains(lat, lon float64) bool {
	return lat >= a.MinLat && lat <= a.MaxLat && lon >= a.MinLon && lon <= a.MaxLon
}

// Sanitize drops malformed rectangles and returns the remainder. The
// returned slice is nil when no valid area remains.
func Sanitize(areas []Area) []Area {
	var valid []Area
	for _, a := range areas {
		if a.Valid() {
			valid = append(valid, a)
		}
	}
	return valid
}

// WithinAny reports whether the point lies inside at least one of the areas.
func WithinAny(areas []Area, lat, lon float64) bool {
	for _, a := range areas {
		if a.Contains(lat, lon) {
			return true
		}
	}
	return false
}

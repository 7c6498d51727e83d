// Package markup implements the inline tag format geographic entities are
// carried in between pipeline stages: bare labeled tags after recognition,
// canonical <LOC> tags after normalization, and attribute-bearing tags
// once coordinates are attached.
package markup

import (
	"fmt"
	"regexp"
)

// CanonicalLabel is the single label every geographic tag is rewritten to
// before geocoding.
const CanonicalLabel = "LOC"

// Sentinel marks an attribute whose value could not be resolved.
const Sentinel = "none"

// geoLabels are the label vocabularies the recognizers emit.
var geoLabels = map[string]bool{
	"GPE":     true,
	"LOC":     true,
	"address": true,
}

// IsGeoLabel reports whether label belongs to a recognizer vocabulary.
func IsGeoLabel(label string) bool {
	return geoLabels[label]
}

var (
	openingTagRe = regexp.MustCompile(`<(\w+)(\s[^>]*)?>`)
	closingTagRe = regexp.MustCompile(`</(\w+)>`)

	// BareCanonicalTagRe matches a canonical tag before coordinates are
	// attached.
	BareCanonicalTagRe = regexp.MustCompile(`(?s)<` + CanonicalLabel + `>(.*?)</` + CanonicalLabel + `>`)

	// GeocodedTagRe matches a canonical tag carrying lat, lon and zoom
	// attributes, including sentinel values.
	GeocodedTagRe = regexp.MustCompile(`(?s)<` + CanonicalLabel + `\s+lat="([^"]+)"\s+lon="([^"]+)"\s+zoom_level="([^"]+)"[^>]*>(.*?)</` + CanonicalLabel + `>`)

	// LegacyGeocodedTagRe matches the older attribute form without a zoom
	// level. It also matches the current form, so callers must rewrite
	// GeocodedTagRe matches first.
	LegacyGeocodedTagRe = regexp.MustCompile(`(?s)<` + CanonicalLabel + `\s+lat="([^"]+)"\s+lon="([^"]+)"[^>]*>(.*?)</` + CanonicalLabel + `>`)
)

// Tag wraps inner in a bare labeled tag.
func Tag(label, inner string) string {
	return "<" + label + ">" + inner + "</" + label + ">"
}

// FormatGeocoded builds a canonical tag with resolved coordinates.
func FormatGeocoded(lat, lon float64, zoom int, inner string) string {
	return fmt.Sprintf(`<%s lat="%v" lon="%v" zoom_level="%d">%s</%s>`, CanonicalLabel, lat, lon, zoom, inner, CanonicalLabel)
}

// FormatFailed builds a canonical tag whose attributes are all sentinels,
// recording that geocoding was attempted and failed.
func FormatFailed(inner string) string {
	return fmt.Sprintf(`<%s lat="%s" lon="%s" zoom_level="%s">%s</%s>`, CanonicalLabel, Sentinel, Sentinel, Sentinel, inner, CanonicalLabel)
}

// StripTags removes every opening and closing tag, keeping the content.
func StripTags(text string) string {
	text = openingTagRe.ReplaceAllString(text, "")
	return closingTagRe.ReplaceAllString(text, "")
}

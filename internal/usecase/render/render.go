// Package render turns coordinate-tagged markup into map-viewer hyperlinks.
package render

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain/markup"
)

const mapViewerURL = "https://www.arcgis.com/apps/mapviewer/index.html"

// legacyZoom is applied to tags that predate the zoom_level attribute.
const legacyZoom = 16

// Hyperlinks rewrites every coordinate-carrying tag in tagged as an HTML
// anchor opening the map viewer centered on the entity. Tags with sentinel
// attributes and tags without coordinates are stripped down to their inner
// text. Tags without a zoom_level attribute get the legacy zoom.
func Hyperlinks(tagged string, logger *zap.Logger) string {
	out := rewriteFormat(tagged, markup.GeocodedTagRe, func(groups []string) string {
		lat, lon, zoom, entity := groups[1], groups[2], groups[3], groups[4]
		if lat == markup.Sentinel || lon == markup.Sentinel || zoom == markup.Sentinel {
			return entity
		}
		return anchor(lat, lon, zoom, entity)
	})

	// Legacy tags carry coordinates but no zoom level. The current-format
	// pass above has already consumed every tag with a zoom_level, so
	// whatever this matches is genuinely legacy.
	out = rewriteFormat(out, markup.LegacyGeocodedTagRe, func(groups []string) string {
		lat, lon, entity := groups[1], groups[2], groups[3]
		if lat == markup.Sentinel || lon == markup.Sentinel {
			return entity
		}
		return anchor(lat, lon, fmt.Sprintf("%d", legacyZoom), entity)
	})

	// Bare tags mean the entity never reached geocoding.
	stripped := markup.BareCanonicalTagRe.ReplaceAllString(out, "$1")
	if stripped != out {
		logger.Debug("stripped tags without coordinates")
	}
	return stripped
}

func rewriteFormat(text string, re *regexp.Regexp, rewrite func(groups []string) string) string {
	return re.ReplaceAllStringFunc(text, func(match string) string {
		groups := re.FindStringSubmatch(match)
		if groups == nil {
			return match
		}
		return rewrite(groups)
	})
}

func anchor(lat, lon, zoom, entity string) string {
	url := fmt.Sprintf("%s?center=%s,%s&level=%s&marker=%s,%s", mapViewerURL, lon, lat, zoom, lon, lat)
	return fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, url, entity)
}

package geotag

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain/area"
	"github.com/kailas-cloud/geotag/internal/domain/markup"
)

// FilterByAreas keeps only geocoded tags whose coordinates fall inside at
// least one valid area, inclusive of the boundary. Tags outside every
// area, tags with sentinel coordinates, and tags with malformed
// coordinates are stripped to their plain text. With no valid area the
// text passes through unchanged. Current-format tags are handled first,
// then what remains of the legacy format without a zoom level.
func FilterByAreas(tagged string, areas []area.Area, logger *zap.Logger) string {
	if len(areas) == 0 {
		return tagged
	}
	valid := area.Sanitize(areas)
	if len(valid) == 0 {
		logger.Warn("no valid areas of interest, returning text unfiltered")
		return tagged
	}

	filtered := filterFormat(tagged, markup.GeocodedTagRe, 4, valid, logger)
	return filterFormat(filtered, markup.LegacyGeocodedTagRe, 3, valid, logger)
}

// filterFormat applies the area check to every match of one tag format.
// entityGroup is the submatch index of the tag's inner text.
func filterFormat(text string, re *regexp.Regexp, entityGroup int, valid []area.Area, logger *zap.Logger) string {
	return re.ReplaceAllStringFunc(text, func(match string) string {
		sub := re.FindStringSubmatch(match)
		if sub == nil {
			return match
		}
		latStr, lonStr, entity := sub[1], sub[2], sub[entityGroup]

		if latStr == markup.Sentinel || lonStr == markup.Sentinel {
			return entity
		}
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		if errLat != nil || errLon != nil {
			logger.Warn("invalid coordinates in entity tag",
				zap.String("lat", latStr),
				zap.String("lon", lonStr))
			return entity
		}
		if area.WithinAny(valid, lat, lon) {
			return match
		}
		return entity
	})
}

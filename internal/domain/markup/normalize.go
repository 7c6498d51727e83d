package markup

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var geoOpeningTagRe = regexp.MustCompile(`<(GPE|LOC|address)([^>]*)>`)

// Normalize rewrites every recognizer-specific geographic tag to the
// canonical label, preserving any attributes. Matches are processed from
// the end of the string backward so earlier offsets stay valid while
// splicing. The boolean reports whether at least one tag pair was
// rewritten. An opening tag without a matching closer is logged and left
// unmodified.
func Normalize(tagged string, logger *zap.Logger) (string, bool) {
	if strings.TrimSpace(tagged) == "" {
		return tagged, false
	}

	matches := geoOpeningTagRe.FindAllStringSubmatchIndex(tagged, -1)
	if matches == nil {
		return tagged, false
	}

	normalized := tagged
	count := 0
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		label := tagged[m[2]:m[3]]
		if label == CanonicalLabel {
			continue
		}
		attrs := tagged[m[4]:m[5]]

		closer := "</" + label + ">"
		rel := strings.Index(normalized[m[1]:], closer)
		if rel < 0 {
			logger.Warn("opening tag without matching closing tag",
				zap.String("label", label))
			continue
		}

		closeStart := m[1] + rel
		closeEnd := closeStart + len(closer)
		normalized = normalized[:closeStart] + "</" + CanonicalLabel + ">" + normalized[closeEnd:]
		normalized = normalized[:m[0]] + "<" + CanonicalLabel + attrs + ">" + normalized[m[1]:]
		count++
	}

	return normalized, count > 0
}

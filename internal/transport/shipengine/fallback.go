package shipengine

import (
	"regexp"
	"strings"
)

// minCandidateLen filters out fragments too short to be real addresses.
const minCandidateLen = 15

const (
	streetTypes     = `Street|St\.?|Avenue|Ave\.?|Road|Rd\.?|Lane|Ln\.?|Drive|Dr\.?|Boulevard|Blvd\.?`
	streetTypesFull = streetTypes + `|Circle|Cir\.?|Court|Ct\.?|Place|Pl\.?|Way|Parkway|Pkwy\.?`
	stateNames      = `Alabama|Alaska|Arizona|Arkansas|California|Colorado|Connecticut|Delaware|Florida|Georgia|Hawaii|Idaho|Illinois|Indiana|Iowa|Kansas|Kentucky|Louisiana|Maine|Maryland|Massachusetts|Michigan|Minnesota|Mississippi|Missouri|Montana|Nebraska|Nevada|New Hampshire|New Jersey|New Mexico|New York|North Carolina|North Dakota|Ohio|Oklahoma|Oregon|Pennsylvania|Rhode Island|South Carolina|South Dakota|Tennessee|Texas|Utah|Vermont|Virginia|Washington|West Virginia|Wisconsin|Wyoming`
)

// addressPatterns are the structural families the fallback recognizes,
// ordered from strictest to loosest.
var addressPatterns = []*regexp.Regexp{
	// Full address: number + street + city + state + ZIP.
	regexp.MustCompile(`(?ims)\b\d{1,5}\s+[A-Za-z0-9\s,.-]+?(?:` + streetTypesFull + `|Highway|Hwy\.?)\b[^.!?]*?[A-Za-z\s]+[,\s]+(?:[A-Z]{2}|` + stateNames + `)\s+\d{5}(?:-\d{4})?`),
	// Address line with optional suite or unit.
	regexp.MustCompile(`(?ims)\b\d{1,5}\s+[A-Za-z0-9\s,.-]+?(?:` + streetTypesFull + `)(?:\s*,?\s*(?:Suite|Ste\.?|Apt\.?|Apartment|Unit|#)\s*[A-Za-z0-9-]+)?[^.!?]*?[A-Za-z\s]+[,\s]+[A-Z]{2}\s+\d{5}(?:-\d{4})?`),
	// PO Box.
	regexp.MustCompile(`(?ims)\b(?:P\.?O\.?\s+Box|Post\s+Office\s+Box)\s+\d+[^.!?]*?[A-Za-z\s]+[,\s]+[A-Z]{2}\s+\d{5}(?:-\d{4})?`),
	// Bare number + street name.
	regexp.MustCompile(`(?ims)\b\d{1,5}\s+[A-Za-z][A-Za-z0-9\s,.-]{5,50}(?:` + streetTypes + `)`),
}

var (
	trailingPunctRe = regexp.MustCompile(`[,;]\s*$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	streetNumberRe  = regexp.MustCompile(`\b\d{1,5}\s`)
	streetKeywordRe = regexp.MustCompile(`(?i)\b(?:Street|St|Avenue|Ave|Road|Rd|Lane|Ln|Drive|Dr|Boulevard|Blvd)\b`)
	cityStateZipRe  = regexp.MustCompile(`\b[A-Za-z\s]+,\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?\b`)
)

// TagAddressesWithPatterns tags address candidates found by the regex
// library, each candidate once at its first occurrence.
func TagAddressesWithPatterns(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	tagged := text
	for _, candidate := range findAddressCandidates(text) {
		tagged = tagFirstOccurrence(tagged, candidate)
	}
	return tagged
}

// findAddressCandidates collects pattern matches plus whole sentences that
// carry every component of a complete address, deduplicated case- and
// whitespace-insensitively.
func findAddressCandidates(text string) []string {
	var candidates []string
	for _, pattern := range addressPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			candidate := trailingPunctRe.ReplaceAllString(strings.TrimSpace(match), "")
			if len(candidate) > minCandidateLen {
				candidates = append(candidates, candidate)
			}
		}
	}

	// Conservative whole-sentence screen: require street number, street
	// keyword and city/state/ZIP before tagging an entire sentence.
	for _, sentence := range splitSentences(text) {
		if len(sentence) > 20 &&
			streetNumberRe.MatchString(sentence) &&
			streetKeywordRe.MatchString(sentence) &&
			cityStateZipRe.MatchString(sentence) {
			candidates = append(candidates, sentence)
		}
	}

	seen := make(map[string]bool)
	var unique []string
	for _, candidate := range candidates {
		key := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(candidate)), " ")
		if !seen[key] && len(candidate) > minCandidateLen {
			seen[key] = true
			unique = append(unique, candidate)
		}
	}
	return unique
}

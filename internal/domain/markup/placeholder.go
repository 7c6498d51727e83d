package markup

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// placeholderPrefix starts every isolation token. The token carries the tag
// label so logs stay readable when a placeholder leaks.
const placeholderPrefix = "TAG_PLACEHOLDER_"

// Placeholder pairs an isolation token with the tagged span it replaced.
type Placeholder struct {
	Token string
	Span  string
}

// Isolate replaces every complete tagged span with an opaque token so a
// recognizer pass cannot tag inside spans an earlier pass already produced.
// The returned placeholders are in creation order and are meant to be
// appended across passes and restored once at the end. A span for this
// purpose is an opening tag followed by the nearest closing tag with the
// same name; spans whose closer never appears are left alone.
func Isolate(text string) (string, []Placeholder) {
	var placeholders []Placeholder
	var b strings.Builder
	pos := 0

	for pos < len(text) {
		loc := openingTagRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			b.WriteString(text[pos:])
			break
		}
		openStart := pos + loc[0]
		openEnd := pos + loc[1]
		label := text[pos+loc[2] : pos+loc[3]]

		closer := "</" + label + ">"
		rel := strings.Index(text[openEnd:], closer)
		if rel < 0 {
			// Unclosed tag, copy it through untouched.
			b.WriteString(text[pos:openEnd])
			pos = openEnd
			continue
		}
		spanEnd := openEnd + rel + len(closer)

		token := placeholderPrefix + label + "_" + shortID()
		placeholders = append(placeholders, Placeholder{Token: token, Span: text[openStart:spanEnd]})

		b.WriteString(text[pos:openStart])
		b.WriteString(token)
		pos = spanEnd
	}

	return b.String(), placeholders
}

// Restore substitutes the original spans back for their tokens, newest
// first. A later pass can tag a span that still contains an earlier token,
// so that token only becomes reachable once its enclosing span is back in
// the text.
func Restore(text string, placeholders []Placeholder) string {
	for i := len(placeholders) - 1; i >= 0; i-- {
		text = strings.Replace(text, placeholders[i].Token, placeholders[i].Span, 1)
	}
	return text
}

func shortID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:8]
}

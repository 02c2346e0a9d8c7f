// Package slug derives URL-safe identifiers from document titles and
// normalizes exported markup before storage.
package slug

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	hyphenRe = regexp.MustCompile(`-{2,}`)
)

// Slugify maps a title to a URL-safe slug: lower-case, whitespace runs
// become a single hyphen, anything outside [a-z0-9-] is stripped,
// repeated hyphens collapse, leading/trailing hyphens are trimmed.
// A title with no usable characters yields "".
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '-':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		}
	}

	s := hyphenRe.ReplaceAllString(b.String(), "-")
	return strings.Trim(s, "-")
}

// WithSuffix disambiguates a colliding slug with a short stable suffix
// derived from the document's external id, so the result is the same
// on every run.
func WithSuffix(slug, externalID string) string {
	sum := sha1.Sum([]byte(externalID))
	return slug + "-" + hex.EncodeToString(sum[:])[:6]
}

// Normalize sanitizes exported markup before storage. It strips script
// and style blocks and trims surrounding whitespace; everything else
// passes through. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	// Stripping runs to a fixpoint: removing one block can splice the
	// surrounding text into a new one that a single pass never sees.
	out := raw
	for {
		next := scriptRe.ReplaceAllString(out, "")
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

// backend/src/security/validation/sanitizers.go
package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Definition of strict sanitization policy
	strictHTMLPolicy *bluemonday.Policy
)

func init() {
	strictHTMLPolicy = bluemonday.StrictPolicy() // Removes all HTML tags
}

// SanitizeText removes all HTML tags and attributes from an input string.
func SanitizeText(s string) string {
	return strictHTMLPolicy.Sanitize(s)
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1 // Drop the rune
	}, s)
}

// CleanName prepares a free-text label (bonus or benefit name) for storage.
// The result has no markup, no control characters and no surrounding spaces.
func CleanName(s string) (string, error) {
	cleaned := strings.TrimSpace(SanitizeText(StripUnprintable(s)))
	// bluemonday escapes what it keeps; labels are rendered as text by the UI.
	cleaned = html.UnescapeString(cleaned)
	if err := ValidateStringMaxLength(cleaned, MaxNameLength, "name"); err != nil {
		return "", err
	}
	return cleaned, nil
}

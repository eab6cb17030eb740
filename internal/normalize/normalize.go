package normalize

import "strings"

// Email returns a normalized form of an email address suitable for storage
// and comparisons: surrounding whitespace trimmed, lower-cased.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Text trims surrounding whitespace from user-supplied message text. The
// result may be empty; callers treat empty as invalid.
func Text(s string) string {
	return strings.TrimSpace(s)
}

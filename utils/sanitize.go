package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// SanitizeContent cleans HTML content to prevent XSS attacks and reports
// whether anything besides whitespace is left.
func SanitizeContent(input string) (string, bool) {
	out := sanitizer.Sanitize(input)
	return out, strings.TrimSpace(out) != ""
}

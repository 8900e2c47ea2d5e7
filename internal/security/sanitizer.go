// Package security strips markup from user text and guards outbound fetches
// of user-supplied URLs.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer turns captured input into plain text. Every tag is removed;
// entities are decoded back so quotes like "don't" survive unchanged.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

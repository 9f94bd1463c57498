// Package sanitizer cleans exported markup before it is converted.
package sanitizer

import (
	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer strips scripts, event handlers and javascript: URLs.
// Safe for concurrent use.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer starts from the UGC policy. Rehosted images arrive as
// relative /api paths; data URIs stay allowed for conversions with no asset
// owner.
func NewHTMLSanitizer() *HTMLSanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &HTMLSanitizer{policy: policy}
}

// Sanitize returns the cleaned markup.
func (s *HTMLSanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}

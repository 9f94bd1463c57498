package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	s := NewHTMLSanitizer()

	out := s.Sanitize(`<h1 onclick="steal()">Minutes</h1>` +
		`<script>alert(1)</script>` +
		`<a href="javascript:alert(1)">bad</a>` +
		`<img alt="pixel" src="data:image/png;base64,iVBORw0KGgo=">` +
		`<img src="/api/documents/d1/assets/a.png">`)

	assert.Contains(t, out, "Minutes</h1>")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, `src="data:image/png;base64,iVBORw0KGgo="`)
	assert.Contains(t, out, `src="/api/documents/d1/assets/a.png"`)
}

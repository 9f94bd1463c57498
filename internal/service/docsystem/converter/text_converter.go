package converter

import (
	"context"
	"strings"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

// textConverter handles plain-text exports (presentations export as text).
type textConverter struct{}

func NewTextConverter() docsysSvc.ContentConverter {
	return &textConverter{}
}

// Convert normalizes line endings and strips the byte-order mark some exports carry.
func (c *textConverter) Convert(ctx context.Context, input []byte) (string, error) {
	text := strings.TrimPrefix(string(input), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}

func (c *textConverter) SupportedExtensions() []string {
	return []string{".txt", ".text"}
}

func (c *textConverter) Name() string {
	return "plaintext"
}

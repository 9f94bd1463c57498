package converter

import (
	"context"
	"strings"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

// markdownConverter passes markdown exports through; markdown is the storage format.
type markdownConverter struct{}

func NewMarkdownConverter() docsysSvc.ContentConverter {
	return &markdownConverter{}
}

// Convert normalizes line endings only.
func (c *markdownConverter) Convert(ctx context.Context, input []byte) (string, error) {
	return strings.ReplaceAll(string(input), "\r\n", "\n"), nil
}

func (c *markdownConverter) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

func (c *markdownConverter) Name() string {
	return "markdown"
}

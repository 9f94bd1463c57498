package converter

import (
	"context"
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/service/docsystem/converter/sanitizer"
)

// htmlConverter turns exported HTML into stored markdown: sanitize, then
// convert. Spreadsheet exports are tables, so GitHub-flavored tables are on.
type htmlConverter struct {
	sanitizer *sanitizer.HTMLSanitizer
	converter *md.Converter
}

// NewHTMLConverter creates a new HTML to markdown converter.
func NewHTMLConverter() docsysSvc.ContentConverter {
	conv := md.NewConverter("", true, &md.Options{
		CodeBlockStyle: "fenced",
	})
	conv.Use(plugin.GitHubFlavored())

	return &htmlConverter{
		sanitizer: sanitizer.NewHTMLSanitizer(),
		converter: conv,
	}
}

func (c *htmlConverter) Convert(ctx context.Context, input []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	markdown, err := c.converter.ConvertString(c.sanitizer.Sanitize(string(input)))
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return markdown, nil
}

func (c *htmlConverter) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

func (c *htmlConverter) Name() string {
	return "html"
}

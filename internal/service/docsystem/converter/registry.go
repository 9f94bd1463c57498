package converter

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

// contentTypeExtensions maps export content types onto registry keys.
var contentTypeExtensions = map[string]string{
	"text/html":       ".html",
	"text/plain":      ".txt",
	"text/markdown":   ".md",
	"text/x-markdown": ".md",
}

// ConverterRegistry routes content to converters by file extension.
//
// Thread-safe for concurrent access.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[string]docsysSvc.ContentConverter // key: file extension (e.g., ".html")
}

// NewConverterRegistry creates a registry with standard converters pre-registered.
func NewConverterRegistry() *ConverterRegistry {
	registry := &ConverterRegistry{
		converters: make(map[string]docsysSvc.ContentConverter),
	}

	registry.Register(NewMarkdownConverter())
	registry.Register(NewTextConverter())
	registry.Register(NewHTMLConverter())

	return registry
}

// Register adds a converter and associates it with its supported extensions.
// Extensions are normalized to lowercase with leading dot.
func (r *ConverterRegistry) Register(converter docsysSvc.ContentConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range converter.SupportedExtensions() {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.converters[ext] = converter
	}
}

// GetConverter retrieves a converter for the given file extension, or nil.
func (r *ConverterRegistry) GetConverter(fileExt string) docsysSvc.ContentConverter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.converters[strings.ToLower(fileExt)]
}

// Convert selects a converter from the filename's extension.
func (r *ConverterRegistry) Convert(ctx context.Context, filename string, content []byte) (string, error) {
	ext := filepath.Ext(filename)
	converter := r.GetConverter(ext)

	if converter == nil {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	return converter.Convert(ctx, content)
}

// ConvertContentType selects a converter from a MIME content type.
// An empty content type is treated as HTML.
func (r *ConverterRegistry) ConvertContentType(ctx context.Context, contentType string, content []byte) (string, error) {
	mediaType := "text/html"
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return "", fmt.Errorf("invalid content type %q: %w", contentType, err)
		}
		mediaType = parsed
	}

	ext, ok := contentTypeExtensions[mediaType]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %s", mediaType)
	}
	return r.Convert(ctx, "content"+ext, content)
}

// SupportedExtensions returns all registered file extensions.
func (r *ConverterRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.converters))
	for ext := range r.converters {
		exts = append(exts, ext)
	}
	return exts
}

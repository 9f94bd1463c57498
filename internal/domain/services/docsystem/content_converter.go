package docsystem

import "context"

// ContentConverter turns one exported content type into stored markdown.
// Implementations hold no per-call state and may be shared across syncs.
type ContentConverter interface {
	Convert(ctx context.Context, input []byte) (markdown string, err error)

	// SupportedExtensions lists the extensions this converter answers for,
	// lowercase with the leading dot.
	SupportedExtensions() []string

	// Name identifies the converter in logs.
	Name() string
}

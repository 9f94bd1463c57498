package docsystem

import (
	"strings"

	models "drivemirror/internal/domain/models/docsystem"
)

// Kind is the handling category of a remote file.
type Kind int

const (
	KindSkipImage Kind = iota + 1
	KindSkipNonImportable
	KindConvertible
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindSkipImage:
		return "skip_image"
	case KindSkipNonImportable:
		return "skip_non_importable"
	case KindConvertible:
		return "convertible"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify: exactly one Kind plus the format
// recorded on the document.
type Classification struct {
	Kind   Kind
	Format models.Format
}

// Skippable reports whether the file never becomes a document.
func (c Classification) Skippable() bool {
	return c.Kind == KindSkipImage || c.Kind == KindSkipNonImportable
}

// HasFallback reports whether a failed rich export may fall back to a binary export.
func (c Classification) HasFallback() bool {
	return c.Kind == KindConvertible && c.Format == models.FormatSpreadsheet
}

const (
	mimeGoogleAppsPrefix   = "application/vnd.google-apps."
	mimeGoogleDocument     = "application/vnd.google-apps.document"
	mimeGoogleSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	mimeGooglePresentation = "application/vnd.google-apps.presentation"
)

var convertibleFormats = map[string]models.Format{
	mimeGoogleDocument:     models.FormatDocument,
	mimeGoogleSpreadsheet:  models.FormatSpreadsheet,
	mimeGooglePresentation: models.FormatPresentation,
}

var opaqueFormats = map[string]models.Format{
	"application/pdf":    models.FormatPDF,
	"application/msword": models.FormatWord,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   models.FormatWord,
	"application/vnd.oasis.opendocument.text":                                   models.FormatWord,
	"application/rtf":                                                           models.FormatWord,
	"application/vnd.ms-excel":                                                  models.FormatExcel,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         models.FormatExcel,
	"application/vnd.oasis.opendocument.spreadsheet":                            models.FormatExcel,
	"text/csv":                                                                  models.FormatExcel,
	"application/vnd.ms-powerpoint":                                             models.FormatPowerPoint,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": models.FormatPowerPoint,
	"application/vnd.oasis.opendocument.presentation":                           models.FormatPowerPoint,
}

// Classify maps a remote mime type onto its handling category.
// Priority: image, non-importable remote-native, convertible, opaque.
func Classify(mimeType string) Classification {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	if strings.HasPrefix(mimeType, "image/") {
		return Classification{Kind: KindSkipImage, Format: models.FormatImage}
	}

	if strings.HasPrefix(mimeType, mimeGoogleAppsPrefix) {
		if format, ok := convertibleFormats[mimeType]; ok {
			return Classification{Kind: KindConvertible, Format: format}
		}
		// forms, maps, sites, shortcuts, drawings, scripts: no usable export
		return Classification{Kind: KindSkipNonImportable, Format: models.FormatOther}
	}

	if format, ok := opaqueFormats[mimeType]; ok {
		return Classification{Kind: KindOpaque, Format: format}
	}
	if strings.HasPrefix(mimeType, "text/") {
		return Classification{Kind: KindOpaque, Format: models.FormatText}
	}
	return Classification{Kind: KindOpaque, Format: models.FormatOther}
}

// remoteMimeType returns the remote-native mime type of a convertible format.
func remoteMimeType(format models.Format) (string, bool) {
	for mimeType, f := range convertibleFormats {
		if f == format {
			return mimeType, true
		}
	}
	return "", false
}

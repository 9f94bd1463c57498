package config

const (
	// MaxDocumentTitleLength is the maximum length for document titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxDocumentTitleLength = 255

	// MaxFolderNameLength is the maximum length for folder names.
	// Same as document titles for consistency.
	MaxFolderNameLength = 255

	// MaxRemoteRefLength bounds a stored remote web link.
	MaxRemoteRefLength = 2048

	// MaxImportFileSize caps a single downloaded or exported file.
	MaxImportFileSize = 100 << 20

	// MaxAssetSize caps a single rehosted image.
	MaxAssetSize = 20 << 20
)

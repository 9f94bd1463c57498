package docsystem

import (
	"context"

	"drivemirror/internal/domain/models/docsystem"
)

// AssetRepository stores embedded assets owned by documents
type AssetRepository interface {
	// Create records an asset whose bytes are already in object storage
	Create(ctx context.Context, asset *docsystem.Asset) error

	// GetByFilename retrieves one asset of a document
	GetByFilename(ctx context.Context, documentID, filename string) (*docsystem.Asset, error)

	// ListByDocument lists all assets of a document
	ListByDocument(ctx context.Context, documentID string) ([]docsystem.Asset, error)

	// DeleteByDocument removes every asset row of a document
	DeleteByDocument(ctx context.Context, documentID string) error
}

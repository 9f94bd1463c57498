package docsystem

import (
	"context"
	"time"

	"drivemirror/internal/domain/models/docsystem"
)

// DocumentRepository defines data access operations for documents
type DocumentRepository interface {
	// Create creates a new document. A caller-supplied ID is kept.
	Create(ctx context.Context, doc *docsystem.Document) error

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id, tenantID string) (*docsystem.Document, error)

	// GetByRemoteRef retrieves the document imported from a remote link.
	// Returns domain.ErrNotFound when nothing has been imported for it.
	GetByRemoteRef(ctx context.Context, tenantID, remoteRef string) (*docsystem.Document, error)

	// Update writes title, folder, storage kind and content fields
	Update(ctx context.Context, doc *docsystem.Document) error

	// SetTimestamps forces created_at/updated_at to the given values
	SetTimestamps(ctx context.Context, id, tenantID string, createdAt, updatedAt time.Time) error

	// MoveAllToRoot clears the folder reference of every document in a folder
	MoveAllToRoot(ctx context.Context, folderID, tenantID string) (int64, error)

	// GetAllMetadataByTenant retrieves all document metadata of a tenant (no content)
	GetAllMetadataByTenant(ctx context.Context, tenantID string) ([]docsystem.Document, error)
}

package docsystem

import (
	"context"

	"drivemirror/internal/domain/models/docsystem"
)

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	// Create creates a new folder
	Create(ctx context.Context, folder *docsystem.Folder) error

	// GetByID retrieves a folder by ID
	GetByID(ctx context.Context, id, tenantID string) (*docsystem.Folder, error)

	// GetByRemoteID retrieves the folder mirroring a remote folder.
	// Returns domain.ErrNotFound when the remote folder has not been mirrored yet.
	GetByRemoteID(ctx context.Context, tenantID, remoteID string) (*docsystem.Folder, error)

	// Update updates a folder's name and parent
	Update(ctx context.Context, folder *docsystem.Folder) error

	// Delete deletes a folder
	Delete(ctx context.Context, id, tenantID string) error

	// ListMirrored lists every folder of the tenant that has a remote id
	ListMirrored(ctx context.Context, tenantID string) ([]docsystem.Folder, error)

	// GetAllByTenant retrieves all folders of a tenant (flat list)
	GetAllByTenant(ctx context.Context, tenantID string) ([]docsystem.Folder, error)

	// GetPath computes the display path for a folder
	GetPath(ctx context.Context, folderID *string, tenantID string) (string, error)
}

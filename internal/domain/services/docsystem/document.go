package docsystem

import (
	"context"
	"io"

	"drivemirror/internal/domain/models/docsystem"
)

// DocumentService exposes mirrored documents and their stored bytes.
type DocumentService interface {
	// GetDocument retrieves a document with its computed path
	GetDocument(ctx context.Context, id, tenantID string) (*docsystem.Document, error)

	// LinkDocument registers a remote file as a linked-passthrough document.
	// The next sync converts it in place.
	LinkDocument(ctx context.Context, req *LinkDocumentRequest) (*docsystem.Document, error)

	// OpenFile streams the attached binary of a document
	OpenFile(ctx context.Context, id, tenantID string) (*StoredObject, error)

	// OpenAsset streams one embedded asset of a document. It is not tenant
	// scoped: the path returned by AssetPath is served to readers as-is.
	OpenAsset(ctx context.Context, id, filename string) (*StoredObject, error)
}

// LinkDocumentRequest represents a passthrough link request
type LinkDocumentRequest struct {
	TenantID  string  `json:"tenant_id"`
	UserID    string  `json:"-"`
	Title     string  `json:"title"`
	RemoteRef string  `json:"remote_ref"`
	MimeType  string  `json:"mime_type"`
	FolderID  *string `json:"folder_id,omitempty"`
}

// StoredObject is an open object-storage stream. Callers must close Body.
type StoredObject struct {
	Body        io.ReadCloser
	Name        string
	ContentType string
	Size        int64
}

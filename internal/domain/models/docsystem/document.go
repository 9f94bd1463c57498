package docsystem

import (
	"time"
)

// StorageKind decides which content field of a Document is populated.
type StorageKind string

const (
	// StorageKindRichNative holds converted markdown in Content.
	StorageKindRichNative StorageKind = "rich_native"
	// StorageKindAttachedBinary holds an opaque blob referenced by BlobKey.
	StorageKindAttachedBinary StorageKind = "attached_binary"
	// StorageKindLinked keeps only the remote link; nothing is mirrored yet.
	StorageKindLinked StorageKind = "linked"
)

// Valid reports whether k is a known storage kind.
func (k StorageKind) Valid() bool {
	switch k {
	case StorageKindRichNative, StorageKindAttachedBinary, StorageKindLinked:
		return true
	}
	return false
}

// Imported reports whether the document content has been mirrored locally.
func (k StorageKind) Imported() bool {
	return k == StorageKindRichNative || k == StorageKindAttachedBinary
}

type Document struct {
	ID          string      `json:"id" db:"id"`
	TenantID    string      `json:"tenant_id" db:"tenant_id"`
	FolderID    *string     `json:"folder_id" db:"folder_id"` // NULL = root level
	Title       string      `json:"title" db:"title"`
	StorageKind StorageKind `json:"storage_kind" db:"storage_kind"`
	RemoteRef   string      `json:"remote_ref" db:"remote_ref"` // remote web link, the idempotency key
	RemoteID    string      `json:"remote_id,omitempty" db:"remote_id"` // remote file id, used to re-export
	Format      Format      `json:"format" db:"format"`
	Path        string      `json:"path,omitempty"`                   // Computed display path, not stored in DB
	Content     string      `json:"content,omitempty" db:"content"` // Markdown content (rich_native only)
	WordCount   int         `json:"word_count" db:"word_count"`

	// Attached binary (attached_binary only)
	BlobKey      string `json:"-" db:"blob_key"`
	BlobName     string `json:"blob_name,omitempty" db:"blob_name"`
	BlobMimeType string `json:"blob_mime_type,omitempty" db:"blob_mime_type"`
	BlobSize     int64  `json:"blob_size,omitempty" db:"blob_size"`

	CreatedBy *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SetRichContent switches the document to rich-native storage and clears any blob fields.
func (d *Document) SetRichContent(markdown string, wordCount int) {
	d.StorageKind = StorageKindRichNative
	d.Content = markdown
	d.WordCount = wordCount
	d.BlobKey = ""
	d.BlobName = ""
	d.BlobMimeType = ""
	d.BlobSize = 0
}

// SetBlob switches the document to attached-binary storage and clears rich content.
func (d *Document) SetBlob(key, name, mimeType string, size int64) {
	d.StorageKind = StorageKindAttachedBinary
	d.Content = ""
	d.WordCount = 0
	d.BlobKey = key
	d.BlobName = name
	d.BlobMimeType = mimeType
	d.BlobSize = size
}

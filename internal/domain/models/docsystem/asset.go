package docsystem

import "time"

// Asset is an embedded image owned by a document. Assets are replaced
// wholesale when their document is re-converted.
type Asset struct {
	ID          string    `json:"id" db:"id"`
	DocumentID  string    `json:"document_id" db:"document_id"`
	Filename    string    `json:"filename" db:"filename"`
	StorageKey  string    `json:"-" db:"storage_key"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

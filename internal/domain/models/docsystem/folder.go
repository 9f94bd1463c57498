package docsystem

import (
	"time"
)

// Folder is the local mirror of a remote folder.
type Folder struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	ParentID  *string   `json:"folder_id" db:"parent_id"` // NULL = root level (JSON uses folder_id for API consistency)
	Name      string    `json:"name" db:"name"`
	RemoteID  *string   `json:"remote_id,omitempty" db:"remote_id"` // NULL = created locally, not mirrored
	CreatedBy *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsMirrored reports whether the folder tracks a remote folder.
// Mirrored folders are only ever removed by the reconciler.
func (f *Folder) IsMirrored() bool {
	return f.RemoteID != nil && *f.RemoteID != ""
}

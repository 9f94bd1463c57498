package docsystem

import (
	"context"
	"fmt"
	"strings"
)

// SyncService mirrors a tenant's remote folder tree into local folders and documents.
type SyncService interface {
	// Sync runs one full reconciliation pass for a tenant.
	// Remote and configuration failures are reported in the result; the error
	// is reserved for lease and persistence failures.
	Sync(ctx context.Context, req *SyncRequest) (*SyncResult, error)

	// ReimportOne re-converts a single rich-native document regardless of timestamps.
	ReimportOne(ctx context.Context, tenantID, documentID string) (*ReimportResult, error)
}

// SyncRequest identifies one sync run.
type SyncRequest struct {
	TenantID     string `json:"tenant_id"`
	RootFolderID string `json:"root_folder_id"`
	UserID       string `json:"user_id,omitempty"`
	// Prune removes local mirrored folders that disappeared remotely.
	Prune bool `json:"prune"`
}

// SyncResult is the aggregated outcome of a run.
type SyncResult struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	FoldersCreated int      `json:"folders_created"`
	FoldersUpdated int      `json:"folders_updated"`
	FoldersRemoved int      `json:"folders_removed"`
	DocsConverted  int      `json:"docs_converted"`
	DocsCreated    int      `json:"docs_created"`
	DocsUploaded   int      `json:"docs_uploaded"`
	DocsUpdated    int      `json:"docs_updated"`
	DocsSkipped    int      `json:"docs_skipped"`
	Errors         []string `json:"errors"`
}

// NewSyncResult returns an empty successful result.
func NewSyncResult() *SyncResult {
	return &SyncResult{Success: true, Errors: []string{}}
}

// Fail marks the run as failed with a message.
func (r *SyncResult) Fail(message string) *SyncResult {
	r.Success = false
	r.Message = message
	return r
}

// AddError records a non-fatal per-item failure.
func (r *SyncResult) AddError(name, message string) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", name, message))
}

// Summary builds the human readable sentence from non-zero counters.
func (r *SyncResult) Summary() string {
	var parts []string
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(r.FoldersCreated, "folder(s) created")
	add(r.FoldersUpdated, "folder(s) updated")
	add(r.FoldersRemoved, "folder(s) removed")
	add(r.DocsCreated+r.DocsConverted, "document(s) imported")
	add(r.DocsUploaded, "file(s) uploaded")
	add(r.DocsUpdated, "document(s) updated")
	add(r.DocsSkipped, "unchanged")
	add(len(r.Errors), "error(s)")
	if len(parts) == 0 {
		return "Nothing to sync"
	}
	return strings.Join(parts, ", ")
}

// ReimportResult is the outcome of ReimportOne.
type ReimportResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

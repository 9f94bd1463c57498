package docsystem

import (
	"context"
	"time"
)

// RemoteStatus is the outcome tag of every remote store call.
type RemoteStatus int

const (
	RemoteSuccess RemoteStatus = iota
	RemoteClientError
	RemoteServerError
	RemoteAuthError
)

func (s RemoteStatus) String() string {
	switch s {
	case RemoteSuccess:
		return "success"
	case RemoteClientError:
		return "client_error"
	case RemoteServerError:
		return "server_error"
	case RemoteAuthError:
		return "auth_error"
	default:
		return "unknown"
	}
}

// RemoteFolder describes one folder below the sync root.
type RemoteFolder struct {
	ID      string
	Name    string
	Parents []string
}

// ParentID returns the first parent, or "" when the folder has none.
func (f RemoteFolder) ParentID() string {
	if len(f.Parents) == 0 {
		return ""
	}
	return f.Parents[0]
}

// RemoteFile describes one file below the sync root.
type RemoteFile struct {
	ID        string
	Name      string
	MimeType  string
	WebLink   string
	Parents   []string
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// ParentID returns the first parent, or "" when the file has none.
func (f RemoteFile) ParentID() string {
	if len(f.Parents) == 0 {
		return ""
	}
	return f.Parents[0]
}

type FolderListing struct {
	Status  RemoteStatus
	Folders []RemoteFolder
	Error   string
}

type FileListing struct {
	Status RemoteStatus
	Files  []RemoteFile
	Error  string
}

// ExportResult carries rich content exported from the remote store.
// ContentType is text/html for markup; plain-text exports are also accepted.
type ExportResult struct {
	Status      RemoteStatus
	Content     string
	ContentType string
	Error       string
}

// BinaryResult carries raw or exported file bytes.
type BinaryResult struct {
	Status   RemoteStatus
	Content  []byte
	Name     string
	MimeType string
	Error    string
}

// RemoteStore is the read-only view of the remote document provider.
// Implementations never return Go errors: failures are reported through the
// Status and Error fields of each result.
type RemoteStore interface {
	// ListFolderTree lists every folder below rootID (the root itself excluded)
	ListFolderTree(ctx context.Context, rootID string) FolderListing

	// ListFilesInFolders lists the files directly inside any of the given folders
	ListFilesInFolders(ctx context.Context, folderIDs []string) FileListing

	// ExportRichContent exports a remote-native file as rich content
	ExportRichContent(ctx context.Context, file RemoteFile) ExportResult

	// ExportFallbackBinary exports a remote-native file in a packaged binary format
	ExportFallbackBinary(ctx context.Context, file RemoteFile) BinaryResult

	// DownloadRaw downloads the file bytes verbatim
	DownloadRaw(ctx context.Context, file RemoteFile) BinaryResult
}

// ImageFetcher downloads provider-hosted images referenced from exported content.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (data []byte, contentType string, err error)
}

package googledrive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	folderFields googleapi.Field = "nextPageToken, files(id, name, parents)"
	fileFields   googleapi.Field = "nextPageToken, files(id, name, mimeType, webViewLink, parents, createdTime, modifiedTime)"

	pageSize = 1000
	// parentsPerQuery keeps the q parameter well under the API's length limit
	parentsPerQuery = 40
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// ListFolderTree walks the hierarchy breadth-first, one query per batch of
// parents per level. Each folder is reported once.
func (c *Client) ListFolderTree(ctx context.Context, rootID string) docsysSvc.FolderListing {
	ctx, span := c.tracer.Start(ctx, "googledrive.list_folder_tree")
	defer span.End()
	span.SetAttributes(attribute.String("drive.root_id", rootID))

	seen := map[string]bool{rootID: true}
	var folders []docsysSvc.RemoteFolder
	frontier := []string{rootID}

	for len(frontier) > 0 {
		var next []string
		for _, batch := range chunk(frontier, parentsPerQuery) {
			err := c.listAll(ctx, folderQuery(batch), folderFields, func(f *drive.File) {
				if seen[f.Id] {
					return
				}
				seen[f.Id] = true
				folders = append(folders, docsysSvc.RemoteFolder{ID: f.Id, Name: f.Name, Parents: f.Parents})
				next = append(next, f.Id)
			})
			if err != nil {
				status, msg := fail(span, err)
				return docsysSvc.FolderListing{Status: status, Error: msg}
			}
		}
		frontier = next
	}

	span.SetAttributes(attribute.Int("drive.folders", len(folders)))
	return docsysSvc.FolderListing{Status: docsysSvc.RemoteSuccess, Folders: folders}
}

// ListFilesInFolders lists the non-folder children of the given folders.
// A file with several listed parents is reported once.
func (c *Client) ListFilesInFolders(ctx context.Context, folderIDs []string) docsysSvc.FileListing {
	ctx, span := c.tracer.Start(ctx, "googledrive.list_files")
	defer span.End()
	span.SetAttributes(attribute.Int("drive.parents", len(folderIDs)))

	seen := make(map[string]bool)
	var files []docsysSvc.RemoteFile

	for _, batch := range chunk(folderIDs, parentsPerQuery) {
		err := c.listAll(ctx, fileQuery(batch), fileFields, func(f *drive.File) {
			if seen[f.Id] {
				return
			}
			seen[f.Id] = true
			files = append(files, toRemoteFile(f))
		})
		if err != nil {
			status, msg := fail(span, err)
			return docsysSvc.FileListing{Status: status, Error: msg}
		}
	}

	span.SetAttributes(attribute.Int("drive.files", len(files)))
	return docsysSvc.FileListing{Status: docsysSvc.RemoteSuccess, Files: files}
}

// listAll pages through a files.list query.
func (c *Client) listAll(ctx context.Context, query string, fields googleapi.Field, fn func(*drive.File)) error {
	pageToken := ""
	for {
		var list *drive.FileList
		err := c.do(ctx, func(ctx context.Context) error {
			call := c.service.Files.List().
				Q(query).
				Fields(fields).
				PageSize(pageSize).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			list, err = call.Do()
			return err
		})
		if err != nil {
			return err
		}

		for _, f := range list.Files {
			fn(f)
		}
		if list.NextPageToken == "" {
			return nil
		}
		pageToken = list.NextPageToken
	}
}

func toRemoteFile(f *drive.File) docsysSvc.RemoteFile {
	return docsysSvc.RemoteFile{
		ID:        f.Id,
		Name:      f.Name,
		MimeType:  f.MimeType,
		WebLink:   f.WebViewLink,
		Parents:   f.Parents,
		CreatedAt: parseTime(f.CreatedTime),
		UpdatedAt: parseTime(f.ModifiedTime),
	}
}

// parseTime returns nil for a missing or malformed RFC 3339 timestamp.
func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

func folderQuery(parentIDs []string) string {
	return fmt.Sprintf("mimeType = '%s' and trashed = false and %s", folderMimeType, parentsClause(parentIDs))
}

func fileQuery(parentIDs []string) string {
	return fmt.Sprintf("mimeType != '%s' and trashed = false and %s", folderMimeType, parentsClause(parentIDs))
}

func parentsClause(parentIDs []string) string {
	terms := make([]string, len(parentIDs))
	for i, id := range parentIDs {
		terms[i] = fmt.Sprintf("'%s' in parents", queryEscaper.Replace(id))
	}
	return "(" + strings.Join(terms, " or ") + ")"
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

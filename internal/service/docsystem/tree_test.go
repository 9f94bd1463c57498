package docsystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "drivemirror/internal/domain/models/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

func TestBuildTree(t *testing.T) {
	a, b, gone := "a", "b", "gone"
	remote := "remote-a"
	folders := []models.Folder{
		{ID: "b", Name: "B", ParentID: &a},
		{ID: "a", Name: "A", RemoteID: &remote},
		{ID: "c", Name: "C", ParentID: &gone},
	}
	documents := []models.Document{
		{ID: "d1", Title: "In B", FolderID: &b, StorageKind: models.StorageKindRichNative},
		{ID: "d2", Title: "Root"},
		{ID: "d3", Title: "Orphan", FolderID: &gone},
	}

	tree := buildTree(folders, documents)

	require.Len(t, tree.Folders, 2)
	assert.Equal(t, "A", tree.Folders[0].Name)
	assert.True(t, tree.Folders[0].Mirrored)
	assert.Equal(t, "C", tree.Folders[1].Name)
	assert.False(t, tree.Folders[1].Mirrored)

	require.Len(t, tree.Folders[0].Folders, 1)
	nested := tree.Folders[0].Folders[0]
	assert.Equal(t, "B", nested.Name)
	require.Len(t, nested.Documents, 1)
	assert.Equal(t, "In B", nested.Documents[0].Title)
	assert.Equal(t, models.StorageKindRichNative, nested.Documents[0].StorageKind)

	titles := []string{}
	for _, d := range tree.Documents {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"Root", "Orphan"}, titles)
}

func TestGetTenantTree(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.folders = []docsysSvc.RemoteFolder{remoteFolder("f1", "Board", testRoot)}
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Minutes", mimeDoc, "f1", ts(2))}
	h.sync(t, false)

	tree, err := NewTreeService(h.store.folderRepo(), h.store.documentRepo(), discardLogger()).
		GetTenantTree(context.Background(), "t1")
	require.NoError(t, err)

	require.Len(t, tree.Folders, 1)
	assert.True(t, tree.Folders[0].Mirrored)
	require.Len(t, tree.Folders[0].Documents, 1)
	assert.Equal(t, "Minutes", tree.Folders[0].Documents[0].Title)
	assert.Empty(t, tree.Documents)

	empty, err := NewTreeService(h.store.folderRepo(), h.store.documentRepo(), discardLogger()).
		GetTenantTree(context.Background(), "t2")
	require.NoError(t, err)
	assert.Empty(t, empty.Folders)
	assert.Empty(t, empty.Documents)
}

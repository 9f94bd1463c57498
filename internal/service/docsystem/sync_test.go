package docsystem

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/lock"
	"drivemirror/internal/metrics"
	"drivemirror/internal/service/docsystem/converter"
	"drivemirror/internal/storage"
)

const (
	mimeDoc   = "application/vnd.google-apps.document"
	mimeSheet = "application/vnd.google-apps.spreadsheet"
	mimeForm  = "application/vnd.google-apps.form"
	mimePDF   = "application/pdf"
)

// fakeRemote serves a fixed tree. Exports default to a small HTML body and
// downloads to a few bytes unless overridden per file id.
type fakeRemote struct {
	folders      []docsysSvc.RemoteFolder
	folderStatus docsysSvc.RemoteStatus
	files        []docsysSvc.RemoteFile
	fileStatus   docsysSvc.RemoteStatus

	exports   map[string]docsysSvc.ExportResult
	fallbacks map[string]docsysSvc.BinaryResult
	downloads map[string]docsysSvc.BinaryResult

	// exportHook runs before each rich export with the run's context.
	exportHook func(ctx context.Context, file docsysSvc.RemoteFile)

	calls         int
	listedFolders []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		exports:   make(map[string]docsysSvc.ExportResult),
		fallbacks: make(map[string]docsysSvc.BinaryResult),
		downloads: make(map[string]docsysSvc.BinaryResult),
	}
}

func (f *fakeRemote) ListFolderTree(_ context.Context, _ string) docsysSvc.FolderListing {
	f.calls++
	if f.folderStatus != docsysSvc.RemoteSuccess {
		return docsysSvc.FolderListing{Status: f.folderStatus, Error: "token expired"}
	}
	return docsysSvc.FolderListing{Status: docsysSvc.RemoteSuccess, Folders: f.folders}
}

func (f *fakeRemote) ListFilesInFolders(_ context.Context, folderIDs []string) docsysSvc.FileListing {
	f.calls++
	f.listedFolders = folderIDs
	if f.fileStatus != docsysSvc.RemoteSuccess {
		return docsysSvc.FileListing{Status: f.fileStatus, Error: "backend unavailable"}
	}
	return docsysSvc.FileListing{Status: docsysSvc.RemoteSuccess, Files: f.files}
}

func (f *fakeRemote) ExportRichContent(ctx context.Context, file docsysSvc.RemoteFile) docsysSvc.ExportResult {
	f.calls++
	if f.exportHook != nil {
		f.exportHook(ctx, file)
	}
	if res, ok := f.exports[file.ID]; ok {
		return res
	}
	return docsysSvc.ExportResult{
		Status:      docsysSvc.RemoteSuccess,
		Content:     fmt.Sprintf("<html><body><h1>%s</h1><p>body of %s</p></body></html>", file.Name, file.ID),
		ContentType: "text/html",
	}
}

func (f *fakeRemote) ExportFallbackBinary(_ context.Context, file docsysSvc.RemoteFile) docsysSvc.BinaryResult {
	f.calls++
	if res, ok := f.fallbacks[file.ID]; ok {
		return res
	}
	return docsysSvc.BinaryResult{Status: docsysSvc.RemoteClientError, Error: "no fallback"}
}

func (f *fakeRemote) DownloadRaw(_ context.Context, file docsysSvc.RemoteFile) docsysSvc.BinaryResult {
	f.calls++
	if res, ok := f.downloads[file.ID]; ok {
		return res
	}
	return docsysSvc.BinaryResult{
		Status:   docsysSvc.RemoteSuccess,
		Content:  []byte("%PDF-1.4 " + file.ID),
		Name:     file.Name,
		MimeType: file.MimeType,
	}
}

func ts(day int) *time.Time {
	t := time.Date(2024, 3, day, 9, 30, 0, 0, time.UTC)
	return &t
}

func remoteFile(id, name, mimeType, parent string, updated *time.Time) docsysSvc.RemoteFile {
	return docsysSvc.RemoteFile{
		ID:        id,
		Name:      name,
		MimeType:  mimeType,
		WebLink:   "https://docs.google.com/d/" + id + "/edit",
		Parents:   []string{parent},
		CreatedAt: ts(1),
		UpdatedAt: updated,
	}
}

type syncHarness struct {
	svc     docsysSvc.SyncService
	store   *memStore
	blobs   *storage.MemoryStorage
	remote  *fakeRemote
	locker  *lock.MemoryLocker
	metrics *metrics.SyncMetrics
}

func newSyncHarness(t *testing.T) *syncHarness {
	t.Helper()
	return newSyncHarnessWith(t, lock.NewMemoryLocker(), SyncConfig{})
}

func newSyncHarnessWith(t *testing.T, locker lock.Locker, cfg SyncConfig) *syncHarness {
	t.Helper()
	store := newMemStore()
	blobs := storage.NewMemory()
	remote := newFakeRemote()
	logger := discardLogger()

	syncMetrics, err := metrics.NewSyncMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	reconciler := NewFolderReconciler(store.folderRepo(), store.documentRepo(), store, logger)
	importer := NewFileImporter(
		remote,
		store.documentRepo(),
		store.assetRepo(),
		store,
		blobs,
		NewAssetRehoster(nil, logger),
		converter.NewConverterRegistry(),
		NewContentAnalyzer(),
		logger,
	)
	svc := NewSyncService(remote, reconciler, importer, store.documentRepo(), locker, syncMetrics, cfg, logger)

	h := &syncHarness{svc: svc, store: store, blobs: blobs, remote: remote, metrics: syncMetrics}
	if ml, ok := locker.(*lock.MemoryLocker); ok {
		h.locker = ml
	}
	return h
}

func (h *syncHarness) sync(t *testing.T, prune bool) *docsysSvc.SyncResult {
	t.Helper()
	result, err := h.svc.Sync(context.Background(), &docsysSvc.SyncRequest{
		TenantID:     "t1",
		RootFolderID: testRoot,
		UserID:       "admin",
		Prune:        prune,
	})
	require.NoError(t, err)
	return result
}

func TestSync_FreshImport(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.folders = []docsysSvc.RemoteFolder{remoteFolder("f1", "F", testRoot)}
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Bylaws", mimeDoc, "f1", ts(2))}

	result := h.sync(t, false)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.FoldersCreated)
	assert.Equal(t, 1, result.DocsCreated)
	assert.Equal(t, "1 folder(s) created, 1 document(s) imported", result.Message)
	assert.Equal(t, []string{testRoot, "f1"}, h.remote.listedFolders)

	docs := h.store.allDocuments()
	require.Len(t, docs, 1)
	doc := docs[0]
	folder := h.store.folderByRemoteID("f1")
	require.NotNil(t, folder)
	assert.Equal(t, models.StorageKindRichNative, doc.StorageKind)
	assert.Equal(t, models.FormatDocument, doc.Format)
	require.NotNil(t, doc.FolderID)
	assert.Equal(t, folder.ID, *doc.FolderID)
	assert.Contains(t, doc.Content, "# Bylaws")
	assert.Positive(t, doc.WordCount)
	assert.Empty(t, doc.BlobKey)
	assert.True(t, doc.CreatedAt.Equal(*ts(1)))
	assert.True(t, doc.UpdatedAt.Equal(*ts(2)))
	assert.Equal(t, "admin", *doc.CreatedBy)
}

func TestSync_Idempotent(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.folders = []docsysSvc.RemoteFolder{remoteFolder("f1", "F", testRoot)}
	h.remote.files = []docsysSvc.RemoteFile{
		remoteFile("d1", "Doc", mimeDoc, "f1", ts(2)),
		remoteFile("p1", "Lease.pdf", mimePDF, testRoot, ts(2)),
		remoteFile("s1", "Budget", mimeSheet, testRoot, ts(2)),
	}

	first := h.sync(t, true)
	require.Empty(t, first.Errors)
	assert.Equal(t, 2, first.DocsCreated)
	assert.Equal(t, 1, first.DocsUploaded)

	second := h.sync(t, true)
	assert.True(t, second.Success)
	assert.Zero(t, second.FoldersCreated+second.FoldersUpdated+second.FoldersRemoved)
	assert.Zero(t, second.DocsCreated+second.DocsConverted+second.DocsUploaded+second.DocsUpdated)
	assert.Equal(t, 3, second.DocsSkipped)
	assert.Equal(t, "3 unchanged", second.Message)
	assert.Len(t, h.store.allDocuments(), 3)
}

func TestSync_TimestampGate(t *testing.T) {
	h := newSyncHarness(t)
	file := remoteFile("d1", "Notes", mimeDoc, testRoot, ts(2))
	h.remote.files = []docsysSvc.RemoteFile{file}
	h.sync(t, false)

	// same modification time: new remote content is not pulled
	h.remote.exports["d1"] = docsysSvc.ExportResult{
		Status: docsysSvc.RemoteSuccess, Content: "<p>revised text</p>", ContentType: "text/html",
	}
	result := h.sync(t, false)
	assert.Equal(t, 1, result.DocsSkipped)
	assert.NotContains(t, h.store.allDocuments()[0].Content, "revised")

	// older remote time is also a skip
	h.remote.files[0].UpdatedAt = ts(1)
	result = h.sync(t, false)
	assert.Equal(t, 1, result.DocsSkipped)

	// strictly newer: re-exported and timestamps follow the remote exactly
	h.remote.files[0].UpdatedAt = ts(5)
	result = h.sync(t, false)
	assert.Equal(t, 1, result.DocsUpdated)
	doc := h.store.allDocuments()[0]
	assert.Contains(t, doc.Content, "revised text")
	assert.True(t, doc.UpdatedAt.Equal(*ts(5)))
	assert.True(t, doc.CreatedAt.Equal(*ts(1)))
}

func TestSync_UnknownRemoteTimeIsSkipped(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Notes", mimeDoc, testRoot, nil)}
	h.sync(t, false)

	result := h.sync(t, false)
	assert.Equal(t, 1, result.DocsSkipped)
	assert.Zero(t, result.DocsUpdated)
}

func TestSync_SpreadsheetFallback(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("s1", "Dues", mimeSheet, testRoot, ts(2))}
	h.remote.exports["s1"] = docsysSvc.ExportResult{Status: docsysSvc.RemoteServerError, Error: "export too large"}
	h.remote.fallbacks["s1"] = docsysSvc.BinaryResult{
		Status:   docsysSvc.RemoteSuccess,
		Content:  []byte("PK\x03\x04 xlsx bytes"),
		Name:     "Dues.xlsx",
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}

	result := h.sync(t, false)

	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.DocsUploaded)
	assert.Zero(t, result.DocsCreated)
	docs := h.store.allDocuments()
	require.Len(t, docs, 1)
	assert.Equal(t, models.StorageKindAttachedBinary, docs[0].StorageKind)
	assert.Equal(t, "Dues.xlsx", docs[0].BlobName)
	assert.Empty(t, docs[0].Content)
	assert.Equal(t, []string{docs[0].BlobKey}, h.blobs.Keys())
	assert.True(t, strings.HasSuffix(docs[0].BlobKey, ".xlsx"))
}

func TestSync_FallbackOnlyForSpreadsheets(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{
		remoteFile("d1", "Broken", mimeDoc, testRoot, ts(2)),
		remoteFile("d2", "Fine", mimeDoc, testRoot, ts(2)),
	}
	h.remote.exports["d1"] = docsysSvc.ExportResult{Status: docsysSvc.RemoteClientError, Error: "cannot export"}

	result := h.sync(t, false)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DocsCreated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Broken: export failed (client_error): cannot export", result.Errors[0])
	assert.Equal(t, "1 document(s) imported, 1 error(s)", result.Message)
	require.Len(t, h.store.allDocuments(), 1)
	assert.Equal(t, "Fine", h.store.allDocuments()[0].Title)
}

func TestSync_FailedUpdateLeavesDocumentUntouched(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Doc", mimeDoc, testRoot, ts(2))}
	h.remote.exports["d1"] = docsysSvc.ExportResult{
		Status:  docsysSvc.RemoteSuccess,
		Content: `<p>v1</p><img src="data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngPixel) + `">`,
	}
	h.sync(t, false)

	before := h.store.allDocuments()[0]
	assetsBefore := h.store.assetsOf(before.ID)
	require.Len(t, assetsBefore, 1)
	blobsBefore := h.blobs.Keys()

	h.remote.files[0].UpdatedAt = ts(5)
	h.remote.files[0].Name = "Doc renamed"
	h.remote.exports["d1"] = docsysSvc.ExportResult{Status: docsysSvc.RemoteServerError, Error: "boom"}
	result := h.sync(t, false)

	assert.Zero(t, result.DocsUpdated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Doc renamed: export failed (server_error): boom", result.Errors[0])

	after := h.store.allDocuments()
	require.Len(t, after, 1)
	assert.Equal(t, before.Title, after[0].Title)
	assert.Equal(t, before.Content, after[0].Content)
	assert.True(t, before.UpdatedAt.Equal(after[0].UpdatedAt))
	assert.Equal(t, assetsBefore, h.store.assetsOf(before.ID))
	assert.Equal(t, blobsBefore, h.blobs.Keys())
}

func TestSync_PruneMovesDocumentsToRoot(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.folders = []docsysSvc.RemoteFolder{remoteFolder("f1", "Old", testRoot)}
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Kept", mimeDoc, "f1", ts(2))}
	h.sync(t, true)
	require.NotNil(t, h.allDocFolder(t))

	// folder deleted remotely, its file gone from the listing too
	h.remote.folders = nil
	h.remote.files = nil
	result := h.sync(t, true)

	assert.Equal(t, 1, result.FoldersRemoved)
	assert.Nil(t, h.store.folderByRemoteID("f1"))
	require.Len(t, h.store.allDocuments(), 1)
	assert.Nil(t, h.allDocFolder(t))
}

func (h *syncHarness) allDocFolder(t *testing.T) *string {
	t.Helper()
	docs := h.store.allDocuments()
	require.Len(t, docs, 1)
	return docs[0].FolderID
}

func TestSync_WithoutPruneKeepsFolders(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.folders = []docsysSvc.RemoteFolder{remoteFolder("f1", "Old", testRoot)}
	h.sync(t, false)

	h.remote.folders = nil
	result := h.sync(t, false)
	assert.Zero(t, result.FoldersRemoved)
	assert.NotNil(t, h.store.folderByRemoteID("f1"))
}

func TestSync_SkipsNonImportable(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{
		remoteFile("form", "Survey", mimeForm, testRoot, ts(2)),
		remoteFile("img", "photo.png", "image/png", testRoot, ts(2)),
	}

	result := h.sync(t, false)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.DocsSkipped)
	assert.Empty(t, h.store.allDocuments())
}

func TestSync_RehostsInlineImage(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Floor plan", mimeDoc, testRoot, ts(2))}
	h.remote.exports["d1"] = docsysSvc.ExportResult{
		Status:      docsysSvc.RemoteSuccess,
		ContentType: "text/html",
		Content: `<p>Plan:</p><img alt="plan" src="data:image/png;base64,` +
			base64.StdEncoding.EncodeToString(pngPixel) + `">`,
	}

	result := h.sync(t, false)
	require.Empty(t, result.Errors)

	doc := h.store.allDocuments()[0]
	assets := h.store.assetsOf(doc.ID)
	require.Len(t, assets, 1)
	assert.NotContains(t, doc.Content, "data:")
	assert.Contains(t, doc.Content, AssetPath(doc.ID, assets[0].Filename))
	assert.Equal(t, "image/png", assets[0].ContentType)
	assert.ElementsMatch(t, []string{assets[0].StorageKey}, h.blobs.Keys())
}

func TestSync_ReconversionReplacesAssets(t *testing.T) {
	h := newSyncHarness(t)
	image := `<img src="data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngPixel) + `">`
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Flyer", mimeDoc, testRoot, ts(2))}
	h.remote.exports["d1"] = docsysSvc.ExportResult{Status: docsysSvc.RemoteSuccess, Content: image}
	h.sync(t, false)

	doc := h.store.allDocuments()[0]
	before := h.store.assetsOf(doc.ID)
	require.Len(t, before, 1)

	h.remote.files[0].UpdatedAt = ts(3)
	h.remote.exports["d1"] = docsysSvc.ExportResult{Status: docsysSvc.RemoteSuccess, Content: "<p>v2</p>" + image}
	result := h.sync(t, false)
	require.Equal(t, 1, result.DocsUpdated)

	after := h.store.assetsOf(doc.ID)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].StorageKey, after[0].StorageKey)
	assert.Equal(t, []string{after[0].StorageKey}, h.blobs.Keys())
}

func TestSync_ConvertsLinkedDocument(t *testing.T) {
	h := newSyncHarness(t)
	file := remoteFile("d1", "Handbook", mimeDoc, testRoot, ts(2))
	require.NoError(t, h.store.documentRepo().Create(context.Background(), &models.Document{
		TenantID:    "t1",
		Title:       "Handbook (link)",
		StorageKind: models.StorageKindLinked,
		RemoteRef:   file.WebLink,
	}))
	h.remote.files = []docsysSvc.RemoteFile{file}

	result := h.sync(t, false)

	assert.Equal(t, 1, result.DocsConverted)
	assert.Zero(t, result.DocsCreated)
	docs := h.store.allDocuments()
	require.Len(t, docs, 1)
	assert.Equal(t, models.StorageKindRichNative, docs[0].StorageKind)
	assert.Equal(t, "Handbook", docs[0].Title)
	assert.Equal(t, "d1", docs[0].RemoteID)
}

func TestSync_OpaqueUpdateCountsAsUpdated(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("p1", "Rules.pdf", mimePDF, testRoot, ts(2))}
	h.sync(t, false)
	firstKey := h.store.allDocuments()[0].BlobKey

	h.remote.files[0].UpdatedAt = ts(4)
	result := h.sync(t, false)

	assert.Equal(t, 1, result.DocsUpdated)
	doc := h.store.allDocuments()[0]
	assert.NotEqual(t, firstKey, doc.BlobKey)
	assert.Equal(t, []string{doc.BlobKey}, h.blobs.Keys())
}

func TestSync_PersistenceFailureLeavesNothingBehind(t *testing.T) {
	h := newSyncHarness(t)
	h.store.failDocumentWrite["Minutes"] = errors.New("value too long")
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Minutes", mimeDoc, testRoot, ts(2))}
	h.remote.exports["d1"] = docsysSvc.ExportResult{
		Status:  docsysSvc.RemoteSuccess,
		Content: `<img src="data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngPixel) + `">`,
	}

	result := h.sync(t, false)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "value too long")
	assert.Empty(t, h.store.allDocuments())
	assert.Empty(t, h.blobs.Keys())
}

func TestSync_MissingRootFolder(t *testing.T) {
	h := newSyncHarness(t)

	result, err := h.svc.Sync(context.Background(), &docsysSvc.SyncRequest{TenantID: "t1"})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "No remote root folder")
	assert.Zero(t, h.remote.calls)
}

func TestSync_RequiresTenant(t *testing.T) {
	h := newSyncHarness(t)
	_, err := h.svc.Sync(context.Background(), &docsysSvc.SyncRequest{RootFolderID: testRoot})
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestSync_ListingFailuresAbort(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.folderStatus = docsysSvc.RemoteAuthError
	result := h.sync(t, false)
	assert.False(t, result.Success)
	assert.Equal(t, "Failed to list remote folders (auth_error): token expired", result.Message)

	h.remote.folderStatus = docsysSvc.RemoteSuccess
	h.remote.fileStatus = docsysSvc.RemoteServerError
	h.remote.folders = []docsysSvc.RemoteFolder{remoteFolder("f1", "F", testRoot)}
	result = h.sync(t, false)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "backend unavailable")
	assert.Empty(t, h.store.allDocuments())
}

func TestSync_FailsFastWhenLeaseHeld(t *testing.T) {
	h := newSyncHarness(t)
	lease, err := h.locker.TryAcquire(context.Background(), syncLockKey("t1"), time.Minute)
	require.NoError(t, err)

	_, err = h.svc.Sync(context.Background(), &docsysSvc.SyncRequest{TenantID: "t1", RootFolderID: testRoot})
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, h.remote.calls)

	// other tenants are unaffected
	other, err := h.svc.Sync(context.Background(), &docsysSvc.SyncRequest{TenantID: "t2", RootFolderID: testRoot})
	require.NoError(t, err)
	assert.True(t, other.Success)

	require.NoError(t, lease.Release(context.Background()))
	result := h.sync(t, false)
	assert.True(t, result.Success)
	assert.Equal(t, "Nothing to sync", result.Message)
}

func TestSync_LeaseReleasedAfterFailure(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.folderStatus = docsysSvc.RemoteServerError
	h.sync(t, false)

	lease, err := h.locker.TryAcquire(context.Background(), syncLockKey("t1"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
}

func TestSync_TopologicalInvariant(t *testing.T) {
	h := newSyncHarness(t)
	// deepest first; memFolderRepo rejects a child created before its parent
	h.remote.folders = []docsysSvc.RemoteFolder{
		remoteFolder("c", "C", "b"),
		remoteFolder("b", "B", "a"),
		remoteFolder("a", "A", testRoot),
	}
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Deep", mimeDoc, "c", ts(2))}

	result := h.sync(t, false)

	require.Empty(t, result.Errors)
	assert.Equal(t, 3, result.FoldersCreated)
	c := h.store.folderByRemoteID("c")
	require.NotNil(t, c)
	assert.Equal(t, c.ID, *h.allDocFolder(t))
	path, err := h.store.folderRepo().GetPath(context.Background(), &c.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, "A/B/C", path)
}

func TestReimportOne(t *testing.T) {
	h := newSyncHarness(t)
	h.remote.files = []docsysSvc.RemoteFile{
		remoteFile("d1", "Policy", mimeDoc, testRoot, ts(2)),
		remoteFile("p1", "Scan.pdf", mimePDF, testRoot, ts(2)),
	}
	h.sync(t, false)

	var rich, binary models.Document
	for _, d := range h.store.allDocuments() {
		if d.StorageKind == models.StorageKindRichNative {
			rich = d
		} else {
			binary = d
		}
	}

	h.remote.exports["d1"] = docsysSvc.ExportResult{Status: docsysSvc.RemoteSuccess, Content: "<p>backfilled</p>"}
	res, err := h.svc.ReimportOne(context.Background(), "t1", rich.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)

	doc, err := h.store.documentRepo().GetByID(context.Background(), rich.ID, "t1")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "backfilled")
	assert.True(t, doc.UpdatedAt.Equal(*ts(2)), "local timestamps are kept")

	// export failure is reported in the result
	h.remote.exports["d1"] = docsysSvc.ExportResult{Status: docsysSvc.RemoteServerError, Error: "quota"}
	res, err = h.svc.ReimportOne(context.Background(), "t1", rich.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "quota")

	_, err = h.svc.ReimportOne(context.Background(), "t1", binary.ID)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = h.svc.ReimportOne(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// revokedLocker grants leases that are already gone when refreshed.
type revokedLocker struct{}

func (revokedLocker) TryAcquire(context.Context, string, time.Duration) (lock.Lease, error) {
	return revokedLease{}, nil
}

type revokedLease struct{}

func (revokedLease) Refresh(context.Context, time.Duration) error { return lock.ErrLost }
func (revokedLease) Release(context.Context) error { return nil }

// blockFirstExport holds the first file's export until the run is cancelled.
func blockFirstExport(ctx context.Context, file docsysSvc.RemoteFile) {
	if file.ID != "d1" {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func TestSync_LeaseRefreshedDuringLongRun(t *testing.T) {
	h := newSyncHarnessWith(t, lock.NewMemoryLocker(), SyncConfig{LockTTL: 60 * time.Millisecond})
	h.remote.files = []docsysSvc.RemoteFile{remoteFile("d1", "Slow", mimeDoc, testRoot, ts(2))}

	var midRun error
	h.remote.exportHook = func(context.Context, docsysSvc.RemoteFile) {
		// well past the original ttl
		time.Sleep(200 * time.Millisecond)
		_, midRun = h.locker.TryAcquire(context.Background(), syncLockKey("t1"), time.Minute)
	}

	result := h.sync(t, false)

	assert.ErrorIs(t, midRun, lock.ErrHeld)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DocsCreated)

	// released once the run ends
	lease, err := h.locker.TryAcquire(context.Background(), syncLockKey("t1"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
}

func TestSync_LostLeaseStopsRun(t *testing.T) {
	h := newSyncHarnessWith(t, revokedLocker{}, SyncConfig{LockTTL: 15 * time.Millisecond})
	h.remote.files = []docsysSvc.RemoteFile{
		remoteFile("d1", "First", mimeDoc, testRoot, ts(2)),
		remoteFile("d2", "Second", mimeDoc, testRoot, ts(2)),
	}
	h.remote.exportHook = blockFirstExport

	result := h.sync(t, false)

	assert.False(t, result.Success)
	assert.Equal(t, "Sync interrupted: sync lease lost", result.Message)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "import: stopped with 1 file(s) left: sync lease lost", result.Errors[len(result.Errors)-1])
	for _, d := range h.store.allDocuments() {
		assert.NotEqual(t, "Second", d.Title)
	}
}

func TestSync_RunTimeoutStopsImportOnce(t *testing.T) {
	h := newSyncHarnessWith(t, lock.NewMemoryLocker(), SyncConfig{RunTimeout: 30 * time.Millisecond})
	h.remote.files = []docsysSvc.RemoteFile{
		remoteFile("d1", "First", mimeDoc, testRoot, ts(2)),
		remoteFile("d2", "Second", mimeDoc, testRoot, ts(2)),
		remoteFile("d3", "Third", mimeDoc, testRoot, ts(2)),
	}
	h.remote.exportHook = blockFirstExport

	result := h.sync(t, false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, context.DeadlineExceeded.Error())
	stopped := 0
	for _, e := range result.Errors {
		if strings.Contains(e, "stopped with") {
			stopped++
			assert.Equal(t, "import: stopped with 2 file(s) left: "+context.DeadlineExceeded.Error(), e)
		}
	}
	assert.Equal(t, 1, stopped)
	assert.LessOrEqual(t, len(result.Errors), 2)
}

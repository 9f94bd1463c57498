package docsystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"drivemirror/internal/config"
	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	"drivemirror/internal/domain/repositories"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/service/docsystem/converter"
	"drivemirror/internal/storage"
)

// Action is what the pipeline does with one remote file.
type Action int

const (
	ActionSkip Action = iota
	// ActionCreate imports a file seen for the first time
	ActionCreate
	// ActionConvert turns a linked-passthrough record into mirrored content
	ActionConvert
	// ActionUpdate re-imports a mirrored file that changed remotely
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionConvert:
		return "convert"
	case ActionUpdate:
		return "update"
	default:
		return "skip"
	}
}

// decide applies the import decision table. Content is only refreshed when the
// remote modification time is known and strictly newer than the local one.
func decide(existing *models.Document, class Classification, remoteUpdatedAt *time.Time) Action {
	if class.Skippable() {
		return ActionSkip
	}
	if existing == nil {
		return ActionCreate
	}
	if existing.StorageKind == models.StorageKindLinked {
		return ActionConvert
	}
	if remoteUpdatedAt != nil && remoteUpdatedAt.After(existing.UpdatedAt) {
		return ActionUpdate
	}
	return ActionSkip
}

// outcome is the counter a processed file lands in.
type outcome int

const (
	outcomeCreated outcome = iota
	outcomeConverted
	outcomeUploaded
	outcomeUpdated
)

func (o outcome) record(result *docsysSvc.SyncResult) {
	switch o {
	case outcomeCreated:
		result.DocsCreated++
	case outcomeConverted:
		result.DocsConverted++
	case outcomeUploaded:
		result.DocsUploaded++
	case outcomeUpdated:
		result.DocsUpdated++
	}
}

func (o outcome) String() string {
	return [...]string{"created", "converted", "uploaded", "updated"}[o]
}

// FileImporter turns remote files into local documents.
type FileImporter struct {
	remote       docsysSvc.RemoteStore
	documentRepo docsysRepo.DocumentRepository
	assetRepo    docsysRepo.AssetRepository
	txManager    repositories.TransactionManager
	storage      storage.Storage
	rehoster     *AssetRehoster
	converters   *converter.ConverterRegistry
	analyzer     docsysSvc.ContentAnalyzer
	logger       *slog.Logger
}

// NewFileImporter creates a file importer
func NewFileImporter(
	remote docsysSvc.RemoteStore,
	documentRepo docsysRepo.DocumentRepository,
	assetRepo docsysRepo.AssetRepository,
	txManager repositories.TransactionManager,
	store storage.Storage,
	rehoster *AssetRehoster,
	converters *converter.ConverterRegistry,
	analyzer docsysSvc.ContentAnalyzer,
	logger *slog.Logger,
) *FileImporter {
	return &FileImporter{
		remote:       remote,
		documentRepo: documentRepo,
		assetRepo:    assetRepo,
		txManager:    txManager,
		storage:      store,
		rehoster:     rehoster,
		converters:   converters,
		analyzer:     analyzer,
		logger:       logger,
	}
}

// ImportAll processes every file in order. A failing file is recorded on
// result and never stops the run; a cancelled context does, and is recorded once.
func (p *FileImporter) ImportAll(
	ctx context.Context,
	tenantID, userID string,
	files []docsysSvc.RemoteFile,
	folders FolderMap,
	result *docsysSvc.SyncResult,
) {
	for i, file := range files {
		if ctx.Err() != nil {
			cause := context.Cause(ctx)
			p.logger.Warn("file import stopped",
				"tenant_id", tenantID,
				"remaining", len(files)-i,
				"error", cause,
			)
			result.AddError("import", fmt.Sprintf("stopped with %d file(s) left: %v", len(files)-i, cause))
			return
		}
		if err := p.importOne(ctx, tenantID, userID, file, folders, result); err != nil {
			p.logger.Warn("file import failed",
				"tenant_id", tenantID,
				"remote_id", file.ID,
				"name", file.Name,
				"error", err,
			)
			result.AddError(documentTitle(file.Name), err.Error())
		}
	}
}

func (p *FileImporter) importOne(
	ctx context.Context,
	tenantID, userID string,
	file docsysSvc.RemoteFile,
	folders FolderMap,
	result *docsysSvc.SyncResult,
) error {
	class := Classify(file.MimeType)
	if class.Skippable() {
		result.DocsSkipped++
		return nil
	}
	if file.WebLink == "" {
		return errors.New("remote file has no web link")
	}

	existing, err := p.documentRepo.GetByRemoteRef(ctx, tenantID, file.WebLink)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	action := decide(existing, class, file.UpdatedAt)
	if action == ActionSkip {
		result.DocsSkipped++
		return nil
	}

	doc := existing
	if doc == nil {
		doc = &models.Document{
			ID:       uuid.NewString(),
			TenantID: tenantID,
		}
		if userID != "" {
			doc.CreatedBy = &userID
		}
	}
	doc.Title = documentTitle(file.Name)
	doc.RemoteRef = file.WebLink
	doc.RemoteID = file.ID
	doc.Format = class.Format
	doc.FolderID = folders.Resolve(file.ParentID())

	usedFallback := false
	if class.Kind == KindConvertible {
		usedFallback, err = p.importConvertible(ctx, doc, existing == nil, file, class, true)
	} else {
		res := p.remote.DownloadRaw(ctx, file)
		if res.Status != docsysSvc.RemoteSuccess {
			return remoteFailure("download", res.Status, res.Error)
		}
		err = p.storeBinary(ctx, doc, existing == nil, file, res)
	}
	if err != nil {
		return err
	}

	var out outcome
	switch {
	case usedFallback:
		out = outcomeUploaded
	case action == ActionUpdate:
		out = outcomeUpdated
	case class.Kind == KindOpaque:
		out = outcomeUploaded
	case action == ActionConvert:
		out = outcomeConverted
	default:
		out = outcomeCreated
	}
	out.record(result)

	p.logger.Debug("file imported",
		"tenant_id", tenantID,
		"document_id", doc.ID,
		"action", action.String(),
		"outcome", out.String(),
	)
	return nil
}

// Reimport re-exports a rich-native document regardless of timestamps. The
// spreadsheet fallback is not applied and the local timestamps are kept.
func (p *FileImporter) Reimport(ctx context.Context, doc *models.Document) error {
	if doc.StorageKind != models.StorageKindRichNative {
		return fmt.Errorf("document is %s, only rich-native documents can be re-imported", doc.StorageKind)
	}
	if doc.RemoteID == "" {
		return errors.New("document has no remote file id")
	}
	mimeType, ok := remoteMimeType(doc.Format)
	if !ok {
		return fmt.Errorf("format %s cannot be exported", doc.Format)
	}

	createdAt, updatedAt := doc.CreatedAt, doc.UpdatedAt
	file := docsysSvc.RemoteFile{
		ID:        doc.RemoteID,
		Name:      doc.Title,
		MimeType:  mimeType,
		WebLink:   doc.RemoteRef,
		CreatedAt: &createdAt,
		UpdatedAt: &updatedAt,
	}
	_, err := p.importConvertible(ctx, doc, false, file, Classify(mimeType), false)
	return err
}

// importConvertible exports rich content and stores it, falling back to the
// packaged binary export for spreadsheets when allowed. It reports whether the
// fallback was used.
func (p *FileImporter) importConvertible(
	ctx context.Context,
	doc *models.Document,
	isNew bool,
	file docsysSvc.RemoteFile,
	class Classification,
	allowFallback bool,
) (bool, error) {
	res := p.remote.ExportRichContent(ctx, file)
	if res.Status == docsysSvc.RemoteSuccess {
		return false, p.storeRich(ctx, doc, isNew, file, res)
	}

	if !allowFallback || !class.HasFallback() {
		return false, remoteFailure("export", res.Status, res.Error)
	}

	p.logger.Info("rich export failed, trying binary fallback",
		"remote_id", file.ID,
		"status", res.Status.String(),
		"error", res.Error,
	)
	fallback := p.remote.ExportFallbackBinary(ctx, file)
	if fallback.Status != docsysSvc.RemoteSuccess {
		return false, fmt.Errorf("export failed (%s): %s; fallback failed (%s): %s",
			res.Status, res.Error, fallback.Status, fallback.Error)
	}
	return true, p.storeBinary(ctx, doc, isNew, file, fallback)
}

// storeRich rehosts assets, converts to markdown and commits the document
// together with its new asset set.
func (p *FileImporter) storeRich(
	ctx context.Context,
	doc *models.Document,
	isNew bool,
	file docsysSvc.RemoteFile,
	res docsysSvc.ExportResult,
) error {
	content := res.Content
	sink := newStorageAssetSink(p.storage, doc.ID)
	if isHTML(res.ContentType) {
		rehosted, err := p.rehoster.Rehost(ctx, content, sink)
		if err != nil {
			p.deleteObjects(ctx, sink.keys())
			return fmt.Errorf("rehost assets: %w", err)
		}
		content = rehosted
	}

	markdown, err := p.converters.ConvertContentType(ctx, res.ContentType, []byte(content))
	if err != nil {
		p.deleteObjects(ctx, sink.keys())
		return fmt.Errorf("convert content: %w", err)
	}

	oldKeys, err := p.ownedObjectKeys(ctx, doc, isNew)
	if err != nil {
		p.deleteObjects(ctx, sink.keys())
		return err
	}

	doc.SetRichContent(markdown, p.analyzer.CountWords(markdown))
	if err := p.commit(ctx, doc, isNew, file, sink.assets); err != nil {
		p.deleteObjects(ctx, sink.keys())
		return err
	}
	p.deleteObjects(ctx, oldKeys)
	return nil
}

// storeBinary uploads the bytes and commits the document as attached-binary.
func (p *FileImporter) storeBinary(
	ctx context.Context,
	doc *models.Document,
	isNew bool,
	file docsysSvc.RemoteFile,
	res docsysSvc.BinaryResult,
) error {
	if int64(len(res.Content)) > config.MaxImportFileSize {
		return fmt.Errorf("file exceeds %d bytes", int64(config.MaxImportFileSize))
	}

	name := res.Name
	if name == "" {
		name = file.Name
	}
	mimeType := res.MimeType
	if mimeType == "" {
		mimeType = file.MimeType
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := blobKey(doc.ID, binaryExtension(name, mimeType))
	info, err := p.storage.Put(ctx, key, bytes.NewReader(res.Content), storage.PutObjectOptions{
		Size:        int64(len(res.Content)),
		ContentType: mimeType,
		Metadata:    map[string]string{"original-name": name},
	})
	if err != nil {
		return fmt.Errorf("store file: %w", err)
	}

	oldKeys, err := p.ownedObjectKeys(ctx, doc, isNew)
	if err != nil {
		p.deleteObjects(ctx, []string{key})
		return err
	}

	doc.SetBlob(key, name, mimeType, info.Size)
	if err := p.commit(ctx, doc, isNew, file, nil); err != nil {
		p.deleteObjects(ctx, []string{key})
		return err
	}
	p.deleteObjects(ctx, oldKeys)
	return nil
}

// commit writes the document, swaps its asset rows and forces the remote
// timestamps, all in one transaction. The timestamp write comes last so the
// row's own updated_at handling cannot overwrite it.
func (p *FileImporter) commit(
	ctx context.Context,
	doc *models.Document,
	isNew bool,
	file docsysSvc.RemoteFile,
	assets []models.Asset,
) error {
	return p.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if isNew {
			if err := p.documentRepo.Create(txCtx, doc); err != nil {
				return err
			}
		} else {
			if err := p.documentRepo.Update(txCtx, doc); err != nil {
				return err
			}
			if err := p.assetRepo.DeleteByDocument(txCtx, doc.ID); err != nil {
				return err
			}
		}

		for i := range assets {
			if err := p.assetRepo.Create(txCtx, &assets[i]); err != nil {
				return err
			}
		}

		if file.CreatedAt == nil && file.UpdatedAt == nil {
			return nil
		}
		createdAt, updatedAt := doc.CreatedAt, doc.UpdatedAt
		if file.CreatedAt != nil {
			createdAt = *file.CreatedAt
		}
		if file.UpdatedAt != nil {
			updatedAt = *file.UpdatedAt
		}
		if err := p.documentRepo.SetTimestamps(txCtx, doc.ID, doc.TenantID, createdAt, updatedAt); err != nil {
			return err
		}
		doc.CreatedAt, doc.UpdatedAt = createdAt, updatedAt
		return nil
	})
}

// ownedObjectKeys lists the stored objects the document owns before a rewrite.
func (p *FileImporter) ownedObjectKeys(ctx context.Context, doc *models.Document, isNew bool) ([]string, error) {
	if isNew {
		return nil, nil
	}
	assets, err := p.assetRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	keys := make([]string, 0, len(assets)+1)
	for _, a := range assets {
		keys = append(keys, a.StorageKey)
	}
	if doc.BlobKey != "" {
		keys = append(keys, doc.BlobKey)
	}
	return keys, nil
}

// deleteObjects removes stored objects best-effort; orphans are only logged.
func (p *FileImporter) deleteObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := p.storage.Delete(ctx, key); err != nil {
			p.logger.Warn("failed to delete stored object", "key", key, "error", err)
		}
	}
}

func remoteFailure(op string, status docsysSvc.RemoteStatus, message string) error {
	if message == "" {
		message = "no details"
	}
	return fmt.Errorf("%s failed (%s): %s", op, status, message)
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}

func documentTitle(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Untitled"
	}
	return truncateRunes(name, config.MaxDocumentTitleLength)
}

func binaryExtension(name, mimeType string) string {
	if ext := filepath.Ext(name); ext != "" && len(ext) <= 10 {
		return strings.ToLower(ext)
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

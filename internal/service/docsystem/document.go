package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"drivemirror/internal/config"
	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/storage"
)

var remoteRefPattern = regexp.MustCompile(`^https?://\S+$`)

// documentService implements the DocumentService interface
type documentService struct {
	docRepo    docsysRepo.DocumentRepository
	folderRepo docsysRepo.FolderRepository
	assetRepo  docsysRepo.AssetRepository
	storage    storage.Storage
	logger     *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	docRepo docsysRepo.DocumentRepository,
	folderRepo docsysRepo.FolderRepository,
	assetRepo docsysRepo.AssetRepository,
	store storage.Storage,
	logger *slog.Logger,
) docsysSvc.DocumentService {
	return &documentService{
		docRepo:    docRepo,
		folderRepo: folderRepo,
		assetRepo:  assetRepo,
		storage:    store,
		logger:     logger,
	}
}

// GetDocument retrieves a document with its computed path
func (s *documentService) GetDocument(ctx context.Context, id, tenantID string) (*models.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	folderPath, err := s.folderRepo.GetPath(ctx, doc.FolderID, tenantID)
	switch {
	case err != nil:
		s.logger.Warn("failed to compute path", "doc_id", doc.ID, "error", err)
		doc.Path = doc.Title
	case folderPath == "":
		doc.Path = doc.Title
	default:
		doc.Path = folderPath + "/" + doc.Title
	}

	return doc, nil
}

// LinkDocument records a remote file without mirroring it. The next sync
// that lists the same remote link converts the record in place.
func (s *documentService) LinkDocument(ctx context.Context, req *docsysSvc.LinkDocumentRequest) (*models.Document, error) {
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}
	req.Title = strings.TrimSpace(req.Title)

	if err := s.validateLinkRequest(req); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	if req.FolderID != nil {
		if _, err := s.folderRepo.GetByID(ctx, *req.FolderID, req.TenantID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, &domain.ValidationError{Message: fmt.Sprintf("folder %s does not exist", *req.FolderID)}
			}
			return nil, err
		}
	}

	doc := &models.Document{
		TenantID:    req.TenantID,
		FolderID:    req.FolderID,
		Title:       req.Title,
		StorageKind: models.StorageKindLinked,
		RemoteRef:   req.RemoteRef,
		Format:      Classify(req.MimeType).Format,
	}
	if req.UserID != "" {
		doc.CreatedBy = &req.UserID
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document linked",
		"id", doc.ID,
		"tenant_id", doc.TenantID,
		"remote_ref", doc.RemoteRef,
	)
	return doc, nil
}

// OpenFile streams the attached binary of a document
func (s *documentService) OpenFile(ctx context.Context, id, tenantID string) (*docsysSvc.StoredObject, error) {
	doc, err := s.docRepo.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if doc.StorageKind != models.StorageKindAttachedBinary || doc.BlobKey == "" {
		return nil, &domain.NotFoundError{Message: "document has no attached file"}
	}

	body, info, err := s.storage.Get(ctx, doc.BlobKey)
	if err != nil {
		return nil, s.storageError(err, doc.BlobKey)
	}

	contentType := doc.BlobMimeType
	if contentType == "" {
		contentType = info.ContentType
	}
	return &docsysSvc.StoredObject{
		Body:        body,
		Name:        doc.BlobName,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

// OpenAsset streams one embedded asset of a document. Asset URLs are
// capability URLs: the document id and the random filename are the secret.
func (s *documentService) OpenAsset(ctx context.Context, id, filename string) (*docsysSvc.StoredObject, error) {
	asset, err := s.assetRepo.GetByFilename(ctx, id, filename)
	if err != nil {
		return nil, err
	}

	body, info, err := s.storage.Get(ctx, asset.StorageKey)
	if err != nil {
		return nil, s.storageError(err, asset.StorageKey)
	}

	return &docsysSvc.StoredObject{
		Body:        body,
		Name:        asset.Filename,
		ContentType: asset.ContentType,
		Size:        info.Size,
	}, nil
}

func (s *documentService) storageError(err error, key string) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Error("stored object missing", "key", key)
		return &domain.NotFoundError{Message: "stored file is missing"}
	}
	return fmt.Errorf("read stored object: %w", err)
}

// validateLinkRequest validates a passthrough link request
func (s *documentService) validateLinkRequest(req *docsysSvc.LinkDocumentRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.TenantID, validation.Required),
		validation.Field(&req.Title,
			validation.Required,
			validation.RuneLength(1, config.MaxDocumentTitleLength),
		),
		validation.Field(&req.RemoteRef,
			validation.Required,
			validation.Length(1, config.MaxRemoteRefLength),
			validation.Match(remoteRefPattern).Error("must be an http(s) link"),
		),
	)
}

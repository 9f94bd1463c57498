package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	"drivemirror/internal/repository/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, tenant_id, folder_id, title, storage_kind, COALESCE(remote_ref, ''), COALESCE(remote_id, ''), format,
	COALESCE(content, ''), word_count, COALESCE(blob_key, ''), COALESCE(blob_name, ''),
	COALESCE(blob_mime_type, ''), blob_size, created_by, created_at, updated_at`

const documentMetadataColumns = `id, tenant_id, folder_id, title, storage_kind, COALESCE(remote_ref, ''), COALESCE(remote_id, ''), format,
	'' AS content, word_count, COALESCE(blob_key, ''), COALESCE(blob_name, ''),
	COALESCE(blob_mime_type, ''), blob_size, created_by, created_at, updated_at`

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *postgres.RepositoryConfig) docsysRepo.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID,
		&doc.TenantID,
		&doc.FolderID,
		&doc.Title,
		&doc.StorageKind,
		&doc.RemoteRef,
		&doc.RemoteID,
		&doc.Format,
		&doc.Content,
		&doc.WordCount,
		&doc.BlobKey,
		&doc.BlobName,
		&doc.BlobMimeType,
		&doc.BlobSize,
		&doc.CreatedBy,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Create creates a new document. The ID is generated when the caller left it empty.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, folder_id, title, storage_kind, remote_ref, remote_id, format,
			content, word_count, blob_key, blob_name, blob_mime_type, blob_size, created_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			COALESCE($16, now()), COALESCE($17, now()))
		RETURNING created_at, updated_at
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.ID,
		doc.TenantID,
		doc.FolderID,
		doc.Title,
		doc.StorageKind,
		nullIfEmpty(doc.RemoteRef),
		nullIfEmpty(doc.RemoteID),
		doc.Format,
		nullIfEmpty(doc.Content),
		doc.WordCount,
		nullIfEmpty(doc.BlobKey),
		nullIfEmpty(doc.BlobName),
		nullIfEmpty(doc.BlobMimeType),
		doc.BlobSize,
		doc.CreatedBy,
		nullIfZero(doc.CreatedAt),
		nullIfZero(doc.UpdatedAt),
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			existing, queryErr := r.GetByRemoteRef(ctx, doc.TenantID, doc.RemoteRef)
			if queryErr != nil {
				return fmt.Errorf("document '%s' already exists: %w", doc.Title, domain.ErrConflict)
			}
			return &domain.ConflictError{
				Message:      fmt.Sprintf("document '%s' is already linked", doc.Title),
				ResourceType: "document",
				ResourceID:   existing.ID,
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("folder not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id, tenantID string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2`, documentColumns, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// GetByRemoteRef retrieves the document imported from a remote link
func (r *PostgresDocumentRepository) GetByRemoteRef(ctx context.Context, tenantID, remoteRef string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND remote_ref = $2`, documentColumns, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, tenantID, remoteRef))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("remote document %s: %w", remoteRef, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document by remote ref: %w", err)
	}
	return doc, nil
}

// Update writes title, folder, storage kind and content fields.
// Timestamps are left to SetTimestamps.
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, folder_id = $2, storage_kind = $3, format = $4, content = $5,
			word_count = $6, blob_key = $7, blob_name = $8, blob_mime_type = $9, blob_size = $10,
			remote_id = $11, updated_at = now()
		WHERE id = $12 AND tenant_id = $13
		RETURNING updated_at
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.Title,
		doc.FolderID,
		doc.StorageKind,
		doc.Format,
		nullIfEmpty(doc.Content),
		doc.WordCount,
		nullIfEmpty(doc.BlobKey),
		nullIfEmpty(doc.BlobName),
		nullIfEmpty(doc.BlobMimeType),
		doc.BlobSize,
		nullIfEmpty(doc.RemoteID),
		doc.ID,
		doc.TenantID,
	).Scan(&doc.UpdatedAt)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("folder not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// SetTimestamps forces created_at/updated_at to the given values
func (r *PostgresDocumentRepository) SetTimestamps(ctx context.Context, id, tenantID string, createdAt, updatedAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET created_at = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, createdAt, updatedAt, id, tenantID)
	if err != nil {
		return fmt.Errorf("set document timestamps: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MoveAllToRoot clears the folder reference of every document in a folder
func (r *PostgresDocumentRepository) MoveAllToRoot(ctx context.Context, folderID, tenantID string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET folder_id = NULL
		WHERE folder_id = $1 AND tenant_id = $2
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, folderID, tenantID)
	if err != nil {
		return 0, fmt.Errorf("move documents to root: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetAllMetadataByTenant retrieves all document metadata of a tenant (no content)
func (r *PostgresDocumentRepository) GetAllMetadataByTenant(ctx context.Context, tenantID string) ([]models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE tenant_id = $1
		ORDER BY title ASC
	`, documentMetadataColumns, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

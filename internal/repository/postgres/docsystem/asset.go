package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	"drivemirror/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAssetRepository implements the AssetRepository interface
type PostgresAssetRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(config *postgres.RepositoryConfig) docsysRepo.AssetRepository {
	return &PostgresAssetRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create records an asset whose bytes are already in object storage
func (r *PostgresAssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, filename, storage_key, content_type, size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, r.tables.Assets)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		asset.DocumentID,
		asset.Filename,
		asset.StorageKey,
		asset.ContentType,
		asset.Size,
	).Scan(&asset.ID, &asset.CreatedAt)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("asset %s: %w", asset.Filename, domain.ErrConflict)
		}
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// GetByFilename retrieves one asset of a document
func (r *PostgresAssetRepository) GetByFilename(ctx context.Context, documentID, filename string) (*models.Asset, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, filename, storage_key, content_type, size, created_at
		FROM %s
		WHERE document_id = $1 AND filename = $2
	`, r.tables.Assets)

	var a models.Asset
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, documentID, filename).Scan(
		&a.ID,
		&a.DocumentID,
		&a.Filename,
		&a.StorageKey,
		&a.ContentType,
		&a.Size,
		&a.CreatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("asset %s: %w", filename, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &a, nil
}

// ListByDocument lists all assets of a document
func (r *PostgresAssetRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Asset, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, filename, storage_key, content_type, size, created_at
		FROM %s
		WHERE document_id = $1
		ORDER BY created_at ASC
	`, r.tables.Assets)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.Filename, &a.StorageKey, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// DeleteByDocument removes every asset row of a document
func (r *PostgresAssetRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, r.tables.Assets)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, documentID); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	return nil
}

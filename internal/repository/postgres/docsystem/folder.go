package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	"drivemirror/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const folderColumns = `id, tenant_id, parent_id, name, remote_id, created_by, created_at, updated_at`

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) docsysRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var f models.Folder
	err := row.Scan(
		&f.ID,
		&f.TenantID,
		&f.ParentID,
		&f.Name,
		&f.RemoteID,
		&f.CreatedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Create creates a new folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, parent_id, name, remote_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, created_at, updated_at
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.TenantID,
		folder.ParentID,
		folder.Name,
		folder.RemoteID,
		folder.CreatedBy,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder '%s' is already mirrored", folder.Name),
				ResourceType: "folder",
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("parent folder not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id, tenantID string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2`, folderColumns, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// GetByRemoteID retrieves the folder mirroring a remote folder
func (r *PostgresFolderRepository) GetByRemoteID(ctx context.Context, tenantID, remoteID string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND remote_id = $2`, folderColumns, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, tenantID, remoteID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("remote folder %s: %w", remoteID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder by remote id: %w", err)
	}
	return folder, nil
}

// Update updates a folder's name and parent
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, parent_id = $2, updated_at = now()
		WHERE id = $3 AND tenant_id = $4
		RETURNING updated_at
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.Name,
		folder.ParentID,
		folder.ID,
		folder.TenantID,
	).Scan(&folder.UpdatedAt)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update folder: %w", err)
	}
	return nil
}

// Delete deletes a folder. Child folders fall back to the root via ON DELETE SET NULL.
func (r *PostgresFolderRepository) Delete(ctx context.Context, id, tenantID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND tenant_id = $2`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListMirrored lists every folder of the tenant that has a remote id
func (r *PostgresFolderRepository) ListMirrored(ctx context.Context, tenantID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE tenant_id = $1 AND remote_id IS NOT NULL
		ORDER BY name ASC
	`, folderColumns, r.tables.Folders)
	return r.list(ctx, query, tenantID)
}

// GetAllByTenant retrieves all folders of a tenant
func (r *PostgresFolderRepository) GetAllByTenant(ctx context.Context, tenantID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, folderColumns, r.tables.Folders)
	return r.list(ctx, query, tenantID)
}

func (r *PostgresFolderRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Folder, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// GetPath computes the display path for a folder by walking up the parent chain
func (r *PostgresFolderRepository) GetPath(ctx context.Context, folderID *string, tenantID string) (string, error) {
	if folderID == nil {
		return "", nil
	}

	// Depth guard stops a corrupted parent chain from recursing forever
	query := fmt.Sprintf(`
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, name, 0 AS depth
			FROM %[1]s
			WHERE id = $1 AND tenant_id = $2
			UNION ALL
			SELECT f.id, f.parent_id, f.name, c.depth + 1
			FROM %[1]s f
			JOIN chain c ON f.id = c.parent_id
			WHERE f.tenant_id = $2 AND c.depth < 64
		)
		SELECT name FROM chain ORDER BY depth DESC
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, *folderID, tenantID)
	if err != nil {
		return "", fmt.Errorf("get folder path: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scan folder path: %w", err)
		}
		parts = append(parts, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate folder path: %w", err)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("folder %s: %w", *folderID, domain.ErrNotFound)
	}
	return strings.Join(parts, "/"), nil
}

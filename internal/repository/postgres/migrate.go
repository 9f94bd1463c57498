package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type migrationStep struct {
	Name string
	SQL  string
}

// migrationSteps returns the idempotent schema steps for the given table names.
func migrationSteps(t *TableNames) []migrationStep {
	return []migrationStep{
		{
			Name: "create_extension_pgcrypto",
			SQL:  `CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		},
		{
			Name: "create_table_folders",
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
  id         UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
  tenant_id  TEXT        NOT NULL,
  parent_id  UUID        REFERENCES %[1]s (id) ON DELETE SET NULL,
  name       TEXT        NOT NULL,
  remote_id  TEXT,
  created_by TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, t.Folders),
		},
		{
			Name: "create_index_folders_remote_id",
			SQL: fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_tenant_remote_id_key
  ON %[1]s (tenant_id, remote_id) WHERE remote_id IS NOT NULL;`, t.Folders),
		},
		{
			Name: "create_table_documents",
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
  id             UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
  tenant_id      TEXT        NOT NULL,
  folder_id      UUID        REFERENCES %[2]s (id) ON DELETE SET NULL,
  title          TEXT        NOT NULL,
  storage_kind   TEXT        NOT NULL CHECK (storage_kind IN ('rich_native', 'attached_binary', 'linked')),
  remote_ref     TEXT,
  remote_id      TEXT,
  format         TEXT        NOT NULL DEFAULT 'other',
  content        TEXT,
  word_count     INTEGER     NOT NULL DEFAULT 0,
  blob_key       TEXT,
  blob_name      TEXT,
  blob_mime_type TEXT,
  blob_size      BIGINT      NOT NULL DEFAULT 0 CHECK (blob_size >= 0),
  created_by     TEXT,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`, t.Documents, t.Folders),
		},
		{
			Name: "create_index_documents_remote_ref",
			SQL: fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_tenant_remote_ref_key
  ON %[1]s (tenant_id, remote_ref) WHERE remote_ref IS NOT NULL;`, t.Documents),
		},
		{
			Name: "create_index_documents_folder_id",
			SQL:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_folder_id_idx ON %[1]s (folder_id);`, t.Documents),
		},
		{
			Name: "create_table_assets",
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
  id           UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
  document_id  UUID        NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
  filename     TEXT        NOT NULL,
  storage_key  TEXT        NOT NULL UNIQUE,
  content_type TEXT        NOT NULL,
  size         BIGINT      NOT NULL CHECK (size >= 0),
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (document_id, filename)
);`, t.Assets, t.Documents),
		},
	}
}

// Migrate applies the schema steps. Every step is idempotent, so it runs on each start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) error {
	start := time.Now()
	logger.Info("db migration starting", "folders_table", tables.Folders)

	for _, step := range migrationSteps(tables) {
		stepStart := time.Now()
		if _, err := pool.Exec(ctx, step.SQL); err != nil {
			logger.Error("db migration failed",
				"migration_step", step.Name,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		logger.Debug("db migration step applied",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	logger.Info("db migration complete", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

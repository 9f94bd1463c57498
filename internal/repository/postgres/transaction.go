package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivemirror/internal/domain/repositories"
)

// TransactionManager runs units of work in pgx transactions.
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// ExecTx runs fn in a transaction. Called inside another ExecTx it opens a
// savepoint on the outer transaction, so a failing inner unit rolls back
// alone and the outer one decides what to do with the error.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	var (
		tx  pgx.Tx
		err error
	)
	if outer := repositories.TxFrom(ctx); outer != nil {
		tx, err = outer.Begin(ctx)
	} else {
		tx, err = tm.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(repositories.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

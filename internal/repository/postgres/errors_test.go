package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassification(t *testing.T) {
	dup := fmt.Errorf("insert document: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsPgDuplicateError(dup))
	assert.False(t, IsPgForeignKeyError(dup))
	assert.True(t, IsPgForeignKeyError(fk))
	assert.False(t, IsPgDuplicateError(errors.New("23505")))
	assert.True(t, IsPgNoRowsError(fmt.Errorf("get folder: %w", pgx.ErrNoRows)))
	assert.False(t, IsPgNoRowsError(fk))
}

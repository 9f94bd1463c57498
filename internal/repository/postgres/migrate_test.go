package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationSteps_UsePrefixedTables(t *testing.T) {
	tables := NewTableNames("test_")
	steps := migrationSteps(tables)

	names := make(map[string]bool)
	for _, step := range steps {
		assert.False(t, names[step.Name], "duplicate step %s", step.Name)
		names[step.Name] = true
		assert.NotContains(t, step.SQL, "%!", "bad format verb in %s", step.Name)
	}

	joined := ""
	for _, step := range steps {
		joined += step.SQL
	}
	assert.Contains(t, joined, "test_folders")
	assert.Contains(t, joined, "test_documents")
	assert.Contains(t, joined, "test_document_assets")
	assert.False(t, strings.Contains(joined, " folders ("), "unprefixed table name leaked")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogFile_PrunesOldest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"drivemirror-20240101T000000.000.log",
		"drivemirror-20240102T000000.000.log",
		"drivemirror-20240103T000000.000.log",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	f, err := SetupLogFile(dir, 2)
	require.NoError(t, err)
	defer f.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.Len(t, names, 3)
	assert.Contains(t, names, "notes.txt")
	assert.Contains(t, names, "drivemirror-20240103T000000.000.log")
	assert.Contains(t, names, filepath.Base(f.Name()))
}

func TestSetupLogFile_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	f, err := SetupLogFile(dir, 5)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("hello\n")
	assert.NoError(t, err)
}

package tenants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`
tenants:
  - id: harbor-house
    root_folder_id: 0AFolderRoot
    schedule: "@every 1h"
    prune: true
  - id: elm-street
    schedule: "0 3 * * *"
`)
	reg, err := Parse(data)
	require.NoError(t, err)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "elm-street", all[0].ID)
	assert.Equal(t, "harbor-house", all[1].ID)

	harbor, ok := reg.Get("harbor-house")
	require.True(t, ok)
	assert.Equal(t, "0AFolderRoot", harbor.RootFolderID)
	assert.True(t, harbor.Prune)

	elm, ok := reg.Get("elm-street")
	require.True(t, ok)
	assert.Empty(t, elm.RootFolderID)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing id", "tenants:\n  - root_folder_id: abc\n"},
		{"bad schedule", "tenants:\n  - id: a\n    schedule: not-a-cron\n"},
		{"duplicate", "tenants:\n  - id: a\n  - id: a\n"},
		{"bad yaml", "tenants: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, reg.All())
}

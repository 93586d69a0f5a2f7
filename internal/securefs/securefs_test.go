package securefs

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPathWithinBase(t *testing.T) {
	t.Parallel()

	base := filepath.Join("static", "bird_images")
	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"base itself", base, true},
		{"child dir", filepath.Join(base, "American_Robin"), true},
		{"nested file", filepath.Join(base, "Osprey", "1.jpg"), true},
		{"parent traversal", filepath.Join(base, "..", "secret"), false},
		{"prefix lookalike", base + "_other", false},
		{"dotdot named dir", filepath.Join(base, "..hidden"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPathWithinBase(base, tt.target))
		})
	}
}

func TestValidateWithinBase(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateWithinBase("images", "images/Osprey"))
	err := ValidateWithinBase("images", "images/../etc")
	require.ErrorIs(t, err, ErrPathTraversal)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	path := filepath.Join("state", "pinned_species.json")

	require.NoError(t, WriteFileAtomic(fs, path, []byte(`{"a":1}`), FilePermissions))
	require.NoError(t, WriteFileAtomic(fs, path, []byte(`{"b":2}`), FilePermissions))

	data, ok, err := ReadFileIfExists(fs, path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"b":2}`, string(data))

	entries, err := afero.ReadDir(fs, "state")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadFileIfExists_Missing(t *testing.T) {
	t.Parallel()

	data, ok, err := ReadFileIfExists(afero.NewMemMapFs(), "missing.json")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestWriteFileAtomic_ReadOnlyFs(t *testing.T) {
	t.Parallel()

	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := WriteFileAtomic(fs, "x/y.json", []byte("{}"), FilePermissions)
	require.Error(t, err)
}

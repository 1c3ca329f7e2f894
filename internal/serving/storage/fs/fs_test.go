package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
)

func TestListVersions_IgnoresNonIntegerChildren(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"1", "2", "not-a-version", "003"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644))

	a := New(logging.NewNopLogger())
	versions, err := a.ListVersions(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}, 3: {}}, versions)
}

func TestListVersions_MissingRootIsEmptyNotError(t *testing.T) {
	a := New(logging.NewNopLogger())
	versions, err := a.ListVersions(context.Background(), "/does/not/exist/at/all")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestOpenArtifact(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "1", "model.bin"), []byte("hello"), 0o644))

	a := New(logging.NewNopLogger())
	data, err := a.OpenArtifact(context.Background(), root, 1, "model.bin")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = a.OpenArtifact(context.Background(), root, 99, "model.bin")
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	a := New(logging.NewNopLogger())

	ok, err := a.Exists(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Exists(context.Background(), filepath.Join(root, "nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

package tokenstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/tokenstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_SetGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := tokenstore.NewFile(path)

	_, ok, err := store.Get(tokenstore.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store must be empty")

	require.NoError(t, store.Set(tokenstore.TokenKey, "tok-123"))

	// a second instance sees the persisted value, as after a reload
	reopened := tokenstore.NewFile(path)
	v, ok, err := reopened.Get(tokenstore.TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, reopened.Delete(tokenstore.TokenKey))
	_, ok, err = store.Get(tokenstore.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Delete("never-set"))
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := tokenstore.NewFile(path).Get(tokenstore.TokenKey)
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set("k", "v"))

	v, ok, _ := store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, store.Delete("k"))
	_, ok, _ = store.Get("k")
	assert.False(t, ok)
}

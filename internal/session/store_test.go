package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token, "empty slot loads as empty string")

	require.NoError(t, store.Save("abc123"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	require.NoError(t, store.Save("replaced"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "replaced", token)
}

func TestFileStore_Clear(t *testing.T) {
	store := NewFileStore(t.TempDir())

	require.NoError(t, store.Clear(), "clearing an empty slot is not an error")

	require.NoError(t, store.Save("tok"))
	require.NoError(t, store.Clear())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileStore_CreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	store := NewFileStore(dir)

	require.NoError(t, store.Save("tok"))
	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestMemoryStore(t *testing.T) {
	store := &MemoryStore{}

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("x"))
	token, _ = store.Load()
	assert.Equal(t, "x", token)

	require.NoError(t, store.Clear())
	token, _ = store.Load()
	assert.Empty(t, token)
}

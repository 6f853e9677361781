package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for checkpoint stores:
// - A fresh store loads the zero checkpoint (never synced)
// - Save then Load round-trips revision and generation
// - Save replaces the previous checkpoint
// - Reset returns the store to the zero checkpoint
// - The file backend writes {"commit": null} for a zero revision and
//   reports corrupt content as ErrCorrupt
// - The file backend leaves no temp file behind
// - OpenBackend selects the backend by name

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := NewMemBadgerStore()
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	for name, open := range storeFactories() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := open(t)
			defer store.Close()

			c, err := store.Load()
			require.NoError(t, err)
			assert.True(t, c.IsZero())

			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, store.Save(Checkpoint{Revision: "abc123", Generation: 4, UpdatedAt: now}))

			c, err = store.Load()
			require.NoError(t, err)
			assert.Equal(t, "abc123", string(c.Revision))
			assert.Equal(t, uint64(4), c.Generation)
			assert.True(t, now.Equal(c.UpdatedAt))

			require.NoError(t, store.Save(Checkpoint{Revision: "def456", Generation: 5, UpdatedAt: now}))
			c, err = store.Load()
			require.NoError(t, err)
			assert.Equal(t, "def456", string(c.Revision))

			require.NoError(t, store.Reset())
			c, err = store.Load()
			require.NoError(t, err)
			assert.True(t, c.IsZero())

			// Reset of an empty store is not an error.
			require.NoError(t, store.Reset())
		})
	}
}

func TestFileStore_OnDiskFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(Checkpoint{Generation: 2}))
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"commit": null`)
	assert.Contains(t, string(data), `"generation": 2`)

	_, err = os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_ReadsMinimalRecord(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"commit":"0123abcd"}`), 0644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	c, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "0123abcd", string(c.Revision))
	assert.Zero(t, c.Generation)
}

func TestFileStore_Corrupt(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = store.Load()
	require.ErrorIs(t, err, ErrCorrupt)

	// A save replaces the corrupt file.
	require.NoError(t, store.Save(Checkpoint{Revision: "beef"}))
	c, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "beef", string(c.Revision))
}

func TestOpenBackend(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	fileStore, err := OpenBackend("", dir, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fileStore)
	require.NoError(t, fileStore.Close())

	badgerStore, err := OpenBackend(BackendBadger, dir, nil)
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, badgerStore)
	require.NoError(t, badgerStore.Save(Checkpoint{Revision: "cafe"}))
	require.NoError(t, badgerStore.Close())

	reopened, err := OpenBackend(BackendBadger, dir, nil)
	require.NoError(t, err)
	defer reopened.Close()
	c, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, "cafe", string(c.Revision))

	_, err = OpenBackend("sled", dir, nil)
	require.ErrorIs(t, err, ErrUnknownBackend)
}

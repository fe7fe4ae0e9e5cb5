package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storages(t *testing.T) map[string]Storage {
	t.Helper()

	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "mirror"))
	require.NoError(t, err)

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Storage{
		"file":   fs,
		"sqlite": sq,
		"memory": NewMemoryStorage(),
	}
}

func TestStorage_Contract(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.GetItem(KeyDatabases)
			require.NoError(t, err)
			assert.False(t, ok, "missing key must report false")

			require.NoError(t, s.SetItem(KeyDatabases, []byte(`[{"id":1}]`)))
			v, ok, err := s.GetItem(KeyDatabases)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `[{"id":1}]`, string(v))

			require.NoError(t, s.SetItem(KeyDatabases, []byte(`[]`)))
			v, _, err = s.GetItem(KeyDatabases)
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(v))

			require.NoError(t, s.RemoveItem(KeyDatabases))
			_, ok, err = s.GetItem(KeyDatabases)
			require.NoError(t, err)
			assert.False(t, ok)

			// Removing twice is fine.
			require.NoError(t, s.RemoveItem(KeyDatabases))

			assert.ErrorIs(t, s.SetItem("../escape", []byte("x")), ErrInvalidKey)
			_, _, err = s.GetItem("")
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestFileStorage_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)

	require.NoError(t, s.SetItem(KeyResults, []byte(`[]`)))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "results.json", entries[0].Name())
}

func TestFileStorage_WatchReportsExternalWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keys := make(chan string, 16)
	require.NoError(t, s.Watch(ctx, func(key string) { keys <- key }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "databases.json"), []byte(`[]`), 0600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case k := <-keys:
			if k == KeyDatabases {
				return
			}
		case <-deadline:
			t.Fatal("expected a change notification for databases")
		}
	}
}

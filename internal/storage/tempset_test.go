package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCleaner struct {
	calls [][]string
	err   error
}

func (c *recordingCleaner) CleanupTemp(_ context.Context, paths []string) error {
	c.calls = append(c.calls, paths)
	return c.err
}

func TestTempSet_AddAndPaths(t *testing.T) {
	set := NewTempSet(&recordingCleaner{})
	set.Add("/tmp/a", "", "/tmp/b")
	set.Add("/tmp/c")

	assert.Equal(t, []string{"/tmp/a", "/tmp/b", "/tmp/c"}, set.Paths())

	// Paths returns a copy
	paths := set.Paths()
	paths[0] = "changed"
	assert.Equal(t, "/tmp/a", set.Paths()[0])
}

func TestTempSet_CleanupIsIdempotent(t *testing.T) {
	cleaner := &recordingCleaner{}
	set := NewTempSet(cleaner)
	set.Add("/tmp/a", "/tmp/b")

	require.NoError(t, set.Cleanup(context.Background()))
	require.NoError(t, set.Cleanup(context.Background()))

	require.Len(t, cleaner.calls, 1)
	assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, cleaner.calls[0])
	assert.Empty(t, set.Paths())
}

func TestTempSet_CleanupEmpty(t *testing.T) {
	cleaner := &recordingCleaner{}
	require.NoError(t, NewTempSet(cleaner).Cleanup(context.Background()))
	assert.Empty(t, cleaner.calls)
}

func TestTempSet_CleanupError(t *testing.T) {
	boom := errors.New("disk on fire")
	set := NewTempSet(&recordingCleaner{err: boom})
	set.Add("/tmp/a")

	assert.ErrorIs(t, set.Cleanup(context.Background()), boom)
	// Failures are not retried
	assert.NoError(t, set.Cleanup(context.Background()))
}

func TestTempSet_WithLocalStorage(t *testing.T) {
	store := setupTestStorage(t)
	set := NewTempSet(store)

	existing := filepath.Join(store.TempDir(), "input")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0600))
	set.Add(existing, filepath.Join(store.TempDir(), "never-created-chunk-002.mp3"))

	require.NoError(t, set.Cleanup(context.Background()))

	entries, err := os.ReadDir(store.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

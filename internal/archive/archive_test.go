package archive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func readArchive(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return zr
}

func TestWrite_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	// Files on disk sort differently from the requested order
	entries := []Entry{
		{Name: "chunk_001.mp3", Path: writeFile(t, dir, "z-first", "one")},
		{Name: "chunk_002.mp3", Path: writeFile(t, dir, "a-second", "two")},
		{Name: "chunk_003.mp3", Path: writeFile(t, dir, "m-third", "three")},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, entries))

	zr := readArchive(t, buf.Bytes())
	require.Len(t, zr.File, 3)

	want := []struct{ name, content string }{
		{"chunk_001.mp3", "one"},
		{"chunk_002.mp3", "two"},
		{"chunk_003.mp3", "three"},
	}
	for i, f := range zr.File {
		assert.Equal(t, want[i].name, f.Name)
		assert.Equal(t, zip.Store, f.Method)

		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, want[i].content, string(got))
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, nil))

	zr := readArchive(t, buf.Bytes())
	assert.Empty(t, zr.File)
}

func TestWrite_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := Write(context.Background(), &buf, []Entry{
		{Name: "chunk_001.mp3", Path: filepath.Join(t.TempDir(), "missing")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWrite_EmptyName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a", "x")

	err := Write(context.Background(), io.Discard, []Entry{{Path: path}})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestWrite_Cancelled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Write(ctx, io.Discard, []Entry{{Name: "chunk_001.mp3", Path: path}})
	assert.ErrorIs(t, err, context.Canceled)
}

// Package archive streams produced files into a zip container.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

// ErrEmptyName is returned when an entry has no archive name.
var ErrEmptyName = errors.New("archive entry name is empty")

// Entry is a file to be added to the archive.
type Entry struct {
	// Name is the path of the entry inside the archive.
	Name string
	// Path is the file on disk whose contents are copied.
	Path string
}

// Write streams entries into w as a zip archive, in slice order. MP3 data does
// not compress, so entries are stored as-is. The archive is finalized before
// Write returns successfully; an empty entries slice yields a valid empty zip.
//
// The context is checked between entries. Once bytes have been written to w a
// failure leaves a truncated archive behind, so callers streaming to a client
// can only abort the connection.
func Write(ctx context.Context, w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		if err := addFile(zw, e); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("%w: %s", ErrEmptyName, e.Path)
	}

	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer func() { _ = f.Close() }()

	modified := time.Now()
	if info, err := f.Stat(); err == nil {
		modified = info.ModTime()
	}

	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     e.Name,
		Method:   zip.Store,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", e.Name, err)
	}

	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("copy %s: %w", e.Name, err)
	}
	return nil
}

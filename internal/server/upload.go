package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/kbukum/gokit/errors"

	"github.com/maauso/audiocut-api/internal/storage"
)

const (
	// audioField is the multipart field carrying the uploaded file.
	audioField = "audio"
	// multipartMemory is how much of a multipart body is held in memory
	// before parts spill to disk.
	multipartMemory = 32 << 20
)

// ErrCodePayloadTooLarge is returned when the body exceeds the upload limit.
const ErrCodePayloadTooLarge goerrors.ErrorCode = "PAYLOAD_TOO_LARGE"

// upload is an audio file received from a client plus its text fields.
type upload struct {
	// path is the file in the temp area. It is registered for cleanup.
	path string
	// filename is the name the client sent.
	filename string
	size     int64
	fields   map[string][]string
}

// field returns the trimmed value of a text field or fallback when it is
// absent or blank.
func (u *upload) field(name, fallback string) string {
	if vs := u.fields[name]; len(vs) > 0 {
		if v := strings.TrimSpace(vs[0]); v != "" {
			return v
		}
	}
	return fallback
}

// has reports whether the client sent the field at all.
func (u *upload) has(name string) bool {
	_, ok := u.fields[name]
	return ok
}

// receiveUpload parses the multipart body and copies the audio part into the
// temp area. The copied file is added to files before any error can occur
// after its creation.
func (h *Handlers) receiveUpload(ctx context.Context, r *http.Request, files *storage.TempSet) (*upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, multipartError(err)
	}
	// Spilled parts live in os.TempDir; the copy below is what we keep
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(audioField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, goerrors.MissingField(audioField).WithCause(err)
		}
		return nil, goerrors.InvalidInput(audioField, "unreadable audio part").WithCause(err)
	}
	defer func() { _ = file.Close() }()

	path, err := h.store.SaveTemp(ctx, header.Filename, file)
	if err != nil {
		return nil, goerrors.Internal(fmt.Errorf("save upload: %w", err))
	}
	files.Add(path)

	return &upload{
		path:     path,
		filename: header.Filename,
		size:     header.Size,
		fields:   r.MultipartForm.Value,
	}, nil
}

func multipartError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return goerrors.New(ErrCodePayloadTooLarge,
			fmt.Sprintf("Upload exceeds the limit of %d bytes.", maxErr.Limit),
			http.StatusRequestEntityTooLarge).WithCause(err)
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		// Nothing was attached, which is the same as a form without the file
		return goerrors.MissingField(audioField).WithCause(err)
	default:
		return goerrors.InvalidInput("", "malformed multipart body").WithCause(err)
	}
}

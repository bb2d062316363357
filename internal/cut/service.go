// Package cut provides the trim and chunk use cases. It sits between the HTTP
// handlers and the ffmpeg wrappers and turns failures into application errors
// that carry their HTTP status.
package cut

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	goerrors "github.com/kbukum/gokit/errors"
	"github.com/kbukum/gokit/resilience"

	"github.com/maauso/audiocut-api/internal/archive"
	"github.com/maauso/audiocut-api/internal/audio"
	"github.com/maauso/audiocut-api/internal/media"
	"github.com/maauso/audiocut-api/internal/storage"
)

// Error codes not covered by the shared taxonomy.
const (
	// ErrCodeS3NotConfigured is returned when a push to S3 is requested but no bucket is set up.
	ErrCodeS3NotConfigured goerrors.ErrorCode = "S3_NOT_CONFIGURED"
	// ErrCodeCancelled is returned when the client went away mid-request.
	ErrCodeCancelled goerrors.ErrorCode = "REQUEST_CANCELLED"
)

// DetailReason is the AppError detail key holding a client-safe failure description.
const DetailReason = "reason"

// StatusClientClosedRequest is reported when the client disconnected before a response.
const StatusClientClosedRequest = 499

// TrimInput contains the parameters of a single excerpt.
type TrimInput struct {
	// InputPath is the uploaded file on disk.
	InputPath string
	// Start is the offset in seconds.
	Start int
	// Duration is the excerpt length in seconds.
	Duration int
}

// ChunkInput contains the parameters of a fixed-length split.
type ChunkInput struct {
	// InputPath is the uploaded file on disk.
	InputPath string
	// Start is the offset in seconds the first chunk begins at.
	Start int
	// ChunkLength is the length of every chunk in seconds.
	ChunkLength int
}

// Service runs trims and chunk splits and optionally publishes the results.
type Service struct {
	processor  media.Processor
	splitter   audio.Splitter
	store      storage.Storage
	logger     *slog.Logger
	publishing bool
}

// Option configures a Service.
type Option func(*Service)

// WithPublishing enables uploads of finished outputs to S3.
func WithPublishing(enabled bool) Option {
	return func(svc *Service) {
		svc.publishing = enabled
	}
}

// NewService creates a new Service.
func NewService(processor media.Processor, store storage.Storage, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		processor: processor,
		splitter:  audio.NewFixedSplitter(processor),
		store:     store,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trim extracts one excerpt of the input. The output path is registered in
// files before ffmpeg starts, so a partial file is removed with the rest.
func (s *Service) Trim(ctx context.Context, files *storage.TempSet, in TrimInput) (string, error) {
	output := in.InputPath + "-cut.mp3"
	files.Add(output)

	s.logger.DebugContext(ctx, "trimming audio",
		slog.String("input", in.InputPath),
		slog.Int("start", in.Start),
		slog.Int("duration", in.Duration),
	)

	if err := s.processor.Trim(ctx, in.InputPath, output, in.Start, in.Duration); err != nil {
		return "", classify(err, "trim")
	}
	return output, nil
}

// Chunk splits the input into fixed-length chunks and returns them as archive
// entries in window order. No entries and no error means the start offset lies
// at or past the end of the audio.
func (s *Service) Chunk(ctx context.Context, files *storage.TempSet, in ChunkInput) ([]archive.Entry, error) {
	chunks, err := s.splitter.Split(ctx, in.InputPath, audio.SplitOpts{
		StartSec: in.Start,
		ChunkSec: in.ChunkLength,
		OnChunk:  func(path string) { files.Add(path) },
	})
	if err != nil {
		return nil, classify(err, "chunk")
	}

	entries := make([]archive.Entry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, archive.Entry{
			Name: audio.ChunkName(c.Index),
			Path: c.Path,
		})
	}

	s.logger.DebugContext(ctx, "audio chunked",
		slog.String("input", in.InputPath),
		slog.Int("chunks", len(entries)),
	)
	return entries, nil
}

// CheckPublish reports whether results can be pushed to S3.
func (s *Service) CheckPublish() error {
	if !s.publishing {
		return goerrors.New(ErrCodeS3NotConfigured, "S3 storage is not configured", http.StatusBadRequest).
			WithCause(storage.ErrS3NotConfigured)
	}
	return nil
}

// PublishFile uploads the file at path under key and returns its URL.
func (s *Service) PublishFile(ctx context.Context, key, path string) (string, error) {
	if err := s.CheckPublish(); err != nil {
		return "", err
	}

	rc, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return "", goerrors.Internal(err)
	}
	defer func() { _ = rc.Close() }()

	url, err := s.store.UploadToS3(ctx, key, rc)
	if err != nil {
		return "", publishError(err)
	}

	s.logger.InfoContext(ctx, "output uploaded", slog.String("key", key))
	return url, nil
}

// PublishArchive packages entries into a zip in the temp area, registers it
// in files and uploads it under key.
func (s *Service) PublishArchive(ctx context.Context, files *storage.TempSet, key string, entries []archive.Entry) (string, error) {
	if err := s.CheckPublish(); err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(archive.Write(ctx, pw, entries))
	}()

	path, err := s.store.SaveTemp(ctx, "chunks.zip", pr)
	// Unblocks the writer if SaveTemp stopped reading early
	_ = pr.Close()
	if err != nil {
		return "", classify(fmt.Errorf("build archive: %w", err), "archive")
	}
	files.Add(path)

	return s.PublishFile(ctx, key, path)
}

// classify maps a processing failure onto an AppError.
func classify(err error, operation string) error {
	if _, ok := goerrors.AsAppError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, resilience.ErrBulkheadFull), errors.Is(err, resilience.ErrBulkheadTimeout):
		return goerrors.ServiceUnavailable("transcoder").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return goerrors.Timeout(operation).WithCause(err)
	case errors.Is(err, context.Canceled):
		return goerrors.New(ErrCodeCancelled, "The request was cancelled.", StatusClientClosedRequest).WithCause(err)
	case errors.Is(err, media.ErrInvalidStart),
		errors.Is(err, media.ErrInvalidDuration),
		errors.Is(err, audio.ErrInvalidStart),
		errors.Is(err, audio.ErrInvalidChunkLength):
		return goerrors.InvalidInput("", err.Error()).WithCause(err)
	case errors.Is(err, media.ErrFFprobeExecution),
		errors.Is(err, media.ErrUnreadableDuration),
		errors.Is(err, media.ErrOutputMissing),
		isFFmpegError(err):
		return goerrors.New(goerrors.ErrCodeExternalService, "ffmpeg failed", http.StatusBadGateway).
			WithCause(err).
			WithDetail("operation", operation).
			WithDetail(DetailReason, failureReason(err))
	default:
		return goerrors.Internal(err)
	}
}

// failureReason describes an ffmpeg or ffprobe failure without server paths.
func failureReason(err error) string {
	var ffErr *media.FFmpegError
	switch {
	case errors.As(err, &ffErr):
		return ffErr.Summary()
	case errors.Is(err, media.ErrOutputMissing):
		return media.ErrOutputMissing.Error()
	case errors.Is(err, media.ErrUnreadableDuration):
		return media.ErrUnreadableDuration.Error()
	default:
		return media.ErrFFprobeExecution.Error()
	}
}

func isFFmpegError(err error) bool {
	var ffErr *media.FFmpegError
	return errors.As(err, &ffErr)
}

func publishError(err error) error {
	if errors.Is(err, storage.ErrS3NotConfigured) {
		return goerrors.New(ErrCodeS3NotConfigured, "S3 storage is not configured", http.StatusBadRequest).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classify(err, "upload")
	}
	return goerrors.ExternalServiceError("object storage", err)
}

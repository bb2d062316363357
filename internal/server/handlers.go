package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/kbukum/gokit/errors"

	"github.com/maauso/audiocut-api/internal/archive"
	"github.com/maauso/audiocut-api/internal/cut"
	"github.com/maauso/audiocut-api/internal/metrics"
	"github.com/maauso/audiocut-api/internal/storage"
	"github.com/maauso/audiocut-api/internal/timecode"
)

// timespecFormat is the accepted time syntax, reported in validation errors.
const timespecFormat = "[[HH:]MM:]SS"

// Defaults are the time specs used when a request leaves a field empty.
type Defaults struct {
	Start         string
	Duration      string
	ChunkDuration string
}

// DefaultDefaults returns the stock defaults: start at zero, 30 second
// excerpts, 20 minute chunks.
func DefaultDefaults() Defaults {
	return Defaults{
		Start:         "00:00:00",
		Duration:      "00:00:30",
		ChunkDuration: "00:20:00",
	}
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *cut.Service
	store          storage.Storage
	validator      *validator.Validate
	logger         *slog.Logger
	metrics        *metrics.Metrics
	defaults       Defaults
	requestTimeout time.Duration
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithDefaults sets the time specs used for empty fields.
func WithDefaults(d Defaults) HandlerOption {
	return func(h *Handlers) {
		h.defaults = d
	}
}

// WithMetrics sets the metrics sink. Without it a private registry is used.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithRequestTimeout bounds the total processing time of one request.
// Zero leaves only the client connection as the limit.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		h.requestTimeout = d
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *cut.Service, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		store:     store,
		validator: newValidator(),
		logger:    logger,
		defaults:  DefaultDefaults(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.New(nil)
	}
	return h
}

// newValidator returns a validator that knows the timespec tag and reports
// fields by their form names.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("timespec", func(fl validator.FieldLevel) bool {
		return timecode.Valid(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Metrics handles GET /metrics requests.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}

// Cut handles POST /cut requests. It trims unless the form carries a
// chunkDuration field, in which case it splits into chunks.
func (h *Handlers) Cut(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, w http.ResponseWriter, up *upload, files *storage.TempSet) error {
		if up.has("chunkDuration") {
			return h.chunk(ctx, w, up, files)
		}
		return h.trim(ctx, w, up, files)
	})
}

// Trim handles POST /trim requests.
func (h *Handlers) Trim(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.trim)
}

// Chunks handles POST /chunks requests.
func (h *Handlers) Chunks(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.chunk)
}

type uploadHandler func(ctx context.Context, w http.ResponseWriter, up *upload, files *storage.TempSet) error

// serve owns the request lifecycle shared by all upload endpoints: it
// receives the file, runs fn and removes every temporary file once fn has
// returned, which is after the response body has been written.
func (h *Handlers) serve(w http.ResponseWriter, r *http.Request, fn uploadHandler) {
	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	logger := h.logger.With(slog.String("request_id", RequestIDFromContext(ctx)))
	files := storage.NewTempSet(h.store)
	defer h.cleanup(context.WithoutCancel(ctx), logger, files)

	up, err := h.receiveUpload(ctx, r, files)
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}
	h.metrics.RecordUpload(up.size)

	logger.Info("audio received",
		slog.String("filename", up.filename),
		slog.Int64("size", up.size),
	)

	if err := fn(ctx, w, up, files); err != nil {
		h.fail(w, r, logger, err)
	}
}

func (h *Handlers) trim(ctx context.Context, w http.ResponseWriter, up *upload, files *storage.TempSet) error {
	req := TrimRequest{
		Start:    up.field("start", h.defaults.Start),
		Duration: up.field("duration", h.defaults.Duration),
		PushToS3: up.field("push_to_s3", ""),
	}
	if err := h.validate(req); err != nil {
		return err
	}

	start, duration, err := parseWindow(req.Start, "duration", req.Duration)
	if err != nil {
		return err
	}

	push, _ := strconv.ParseBool(req.PushToS3)
	if push {
		if err := h.service.CheckPublish(); err != nil {
			return err
		}
	}

	output, err := h.service.Trim(ctx, files, cut.TrimInput{
		InputPath: up.path,
		Start:     start,
		Duration:  duration,
	})
	if err != nil {
		return err
	}
	h.metrics.RecordTrim()

	if push {
		url, err := h.service.PublishFile(ctx, "trims/"+RequestIDFromContext(ctx)+".mp3", output)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, TrimUploadResponse{URL: url})
		return nil
	}

	return h.streamFile(ctx, w, output)
}

func (h *Handlers) chunk(ctx context.Context, w http.ResponseWriter, up *upload, files *storage.TempSet) error {
	req := ChunkRequest{
		Start:         up.field("start", h.defaults.Start),
		ChunkDuration: up.field("chunkDuration", h.defaults.ChunkDuration),
		PushToS3:      up.field("push_to_s3", ""),
	}
	if err := h.validate(req); err != nil {
		return err
	}

	start, chunkLength, err := parseWindow(req.Start, "chunkDuration", req.ChunkDuration)
	if err != nil {
		return err
	}

	push, _ := strconv.ParseBool(req.PushToS3)
	if push {
		if err := h.service.CheckPublish(); err != nil {
			return err
		}
	}

	entries, err := h.service.Chunk(ctx, files, cut.ChunkInput{
		InputPath:   up.path,
		Start:       start,
		ChunkLength: chunkLength,
	})
	if err != nil {
		return err
	}
	h.metrics.RecordChunks(len(entries))

	if push {
		url, err := h.service.PublishArchive(ctx, files, "chunks/"+RequestIDFromContext(ctx)+".zip", entries)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ChunkUploadResponse{URL: url, Chunks: len(entries)})
		return nil
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=chunks.zip")
	w.WriteHeader(http.StatusOK)

	// Headers are out; a failure from here on can only cut the stream short
	if err := archive.Write(ctx, w, entries); err != nil {
		h.logger.WarnContext(ctx, "zip stream aborted",
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
		abortResponse()
	}
	return nil
}

// streamFile writes an MP3 file as the response body.
func (h *Handlers) streamFile(ctx context.Context, w http.ResponseWriter, path string) error {
	rc, err := h.store.LoadTemp(ctx, path)
	if err != nil {
		return goerrors.Internal(err)
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "audio/mpeg")
	if f, ok := rc.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		}
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(ctx, "audio stream aborted",
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// validate runs struct validation and converts the first failure into an AppError.
func (h *Handlers) validate(req any) error {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return goerrors.Validation(err.Error()).WithCause(err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "timespec":
		return goerrors.InvalidFormat(fe.Field(), timespecFormat).WithCause(err)
	case "boolean":
		return goerrors.InvalidFormat(fe.Field(), "true or false").WithCause(err)
	default:
		return goerrors.Validation(err.Error()).WithCause(err)
	}
}

// parseWindow parses a validated start and length pair. The length must be
// positive.
func parseWindow(startSpec, lengthField, lengthSpec string) (int, int, error) {
	start, err := timecode.Parse(startSpec)
	if err != nil {
		return 0, 0, goerrors.InvalidFormat("start", timespecFormat).WithCause(err)
	}
	length, err := timecode.Parse(lengthSpec)
	if err != nil {
		return 0, 0, goerrors.InvalidFormat(lengthField, timespecFormat).WithCause(err)
	}
	if length <= 0 {
		return 0, 0, goerrors.InvalidInput(lengthField, lengthField+" must be greater than zero")
	}
	return start, length, nil
}

// fail logs err and writes it as a JSON error response.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	appErr, ok := goerrors.AsAppError(err)
	if !ok {
		appErr = goerrors.Internal(err)
	}

	attrs := []any{
		slog.String("code", string(appErr.Code)),
		slog.Int("status", appErr.HTTPStatus),
		slog.String("error", err.Error()),
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		logger.WarnContext(r.Context(), "request rejected", attrs...)
	}

	h.metrics.RecordHTTPError(r.Method, routeLabel(r), string(appErr.Code))
	writeAppError(w, appErr)
}

// cleanup removes every temporary file of the request. Failures are only
// logged and counted.
func (h *Handlers) cleanup(ctx context.Context, logger *slog.Logger, files *storage.TempSet) {
	paths := files.Paths()
	if err := files.Cleanup(ctx); err != nil {
		h.metrics.RecordCleanupFailure()
		logger.Warn("cleanup failed",
			slog.Int("files", len(paths)),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("temporary files removed", slog.Int("files", len(paths)))
}

// abortResponse tears down the connection so the client sees a truncated
// body instead of a well-formed but incomplete one. Deferred cleanup still runs.
func abortResponse() {
	panic(http.ErrAbortHandler)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, label, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error:   label,
		Message: message,
		Code:    code,
	})
}

// writeAppError writes appErr. Upstream failures (5xx other than 500) report
// a client-safe reason when one is attached, else the underlying error text;
// internal errors never expose their cause.
func writeAppError(w http.ResponseWriter, appErr *goerrors.AppError) {
	message := appErr.Message
	if appErr.HTTPStatus > http.StatusInternalServerError {
		if reason, ok := appErr.Details[cut.DetailReason].(string); ok && reason != "" {
			message = reason
		} else if appErr.Cause != nil {
			message = appErr.Cause.Error()
		}
	}
	writeError(w, appErr.HTTPStatus, appErr.Message, message, string(appErr.Code))
}

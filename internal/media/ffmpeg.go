package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/audiocut-api/internal/timecode"
)

// Static errors for media operations.
var (
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidStart is returned when the start offset is negative.
	ErrInvalidStart = errors.New("invalid start: must not be negative")
	// ErrOutputMissing is returned when ffmpeg exits cleanly but wrote no output file.
	ErrOutputMissing = errors.New("output file not created")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrUnreadableDuration is returned when ffprobe reports no usable duration.
	ErrUnreadableDuration = errors.New("ffprobe reported no duration")
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	// bitrate is the MP3 output bitrate, e.g. "192k". Empty leaves the encoder default.
	bitrate string
	runner  *Runner
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithFFprobePath sets the ffprobe binary used for duration probing.
func WithFFprobePath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// WithBitrate sets the MP3 output bitrate.
func WithBitrate(bitrate string) Option {
	return func(p *FFmpegProcessor) {
		p.bitrate = bitrate
	}
}

// WithRunner sets the runner used to execute ffmpeg and ffprobe.
func WithRunner(r *Runner) Option {
	return func(p *FFmpegProcessor) {
		if r != nil {
			p.runner = r
		}
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, opts ...Option) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
		runner:      NewRunner(RunnerConfig{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Trim extracts a time range of src into dst as MP3.
func (p *FFmpegProcessor) Trim(ctx context.Context, src, dst string, start, duration int) error {
	if start < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidStart, start)
	}
	if duration <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, duration)
	}

	if _, err := p.runner.Run(ctx, p.ffmpegPath, p.trimArgs(src, dst, start, duration)); err != nil {
		return err
	}

	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, dst)
	}
	return nil
}

// trimArgs builds the ffmpeg arguments for a trim. The seek is an input option
// so ffmpeg jumps straight to the offset instead of decoding from the start.
func (p *FFmpegProcessor) trimArgs(src, dst string, start, duration int) []string {
	args := []string{
		"-y", // Overwrite output file without asking
		"-hide_banner",
		"-loglevel", "error",
		"-ss", timecode.Format(start),
		"-i", src,
		"-t", timecode.Format(duration),
		"-vn", // Drop embedded cover art
		"-c:a", "libmp3lame",
	}
	if p.bitrate != "" {
		args = append(args, "-b:a", p.bitrate)
	}
	return append(args, dst)
}

// GetMediaDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.runner.Run(ctx, p.ffprobePath, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		var ffErr *FFmpegError
		if errors.As(err, &ffErr) {
			return 0, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
		}
		return 0, err
	}

	return parseDuration(string(out))
}

// parseDuration reads the ffprobe duration line. Streams without a container
// duration print "N/A", which is reported as ErrUnreadableDuration.
func parseDuration(output string) (float64, error) {
	value := strings.TrimSpace(output)
	duration, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnreadableDuration, value)
	}
	return duration, nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Summary returns the last line ffmpeg wrote to stderr, or the exit error when
// stderr is empty. Directories of path arguments are stripped so the result
// can be shown to clients.
func (e *FFmpegError) Summary() string {
	summary := lastLine(e.Stderr)
	if summary == "" && e.Err != nil {
		summary = e.Err.Error()
	}
	for _, arg := range e.Args {
		if strings.ContainsRune(arg, filepath.Separator) {
			summary = strings.ReplaceAll(summary, arg, filepath.Base(arg))
		}
	}
	return summary
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)

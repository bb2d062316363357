package audio

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/maauso/audiocut-api/internal/media"
)

// Static errors for chunk planning.
var (
	// ErrInvalidChunkLength is returned when the chunk length is not positive.
	ErrInvalidChunkLength = errors.New("chunk length must be positive")
	// ErrInvalidStart is returned when the start offset is negative.
	ErrInvalidStart = errors.New("start offset must not be negative")
)

// Plan lays out consecutive windows of chunkSec seconds from startSec until
// totalSec is reached. Every window starts strictly before totalSec; the last
// one may reach past the end. A start at or beyond totalSec yields no windows.
func Plan(startSec int, totalSec float64, chunkSec int) ([]Window, error) {
	if chunkSec <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkLength, chunkSec)
	}
	if startSec < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidStart, startSec)
	}

	var windows []Window
	for cursor := startSec; float64(cursor) < totalSec; cursor += chunkSec {
		windows = append(windows, Window{
			Index:  len(windows) + 1,
			Start:  cursor,
			Length: chunkSec,
		})
		// The next cursor would wrap around
		if cursor > math.MaxInt-chunkSec {
			break
		}
	}
	return windows, nil
}

// ChunkPath returns the output path for window index i of inputPath.
func ChunkPath(inputPath string, i int) string {
	return fmt.Sprintf("%s-chunk-%03d.mp3", inputPath, i)
}

// ChunkName returns the archive entry name for window index i.
func ChunkName(i int) string {
	return fmt.Sprintf("chunk_%03d.mp3", i)
}

// FixedSplitter implements Splitter by running one transcode per window,
// strictly one after another.
type FixedSplitter struct {
	processor media.Processor
}

// NewFixedSplitter creates a new FixedSplitter backed by processor.
func NewFixedSplitter(processor media.Processor) *FixedSplitter {
	return &FixedSplitter{processor: processor}
}

// Split implements Splitter.Split.
func (s *FixedSplitter) Split(ctx context.Context, inputPath string, opts SplitOpts) ([]Chunk, error) {
	// Reject bad options before spending a probe on them
	if _, err := Plan(opts.StartSec, 0, opts.ChunkSec); err != nil {
		return nil, err
	}

	duration, err := s.processor.GetMediaDuration(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("get audio duration: %w", err)
	}

	windows, err := Plan(opts.StartSec, duration, opts.ChunkSec)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return chunks, fmt.Errorf("extract chunk %d: %w", w.Index, err)
		}

		path := ChunkPath(inputPath, w.Index)
		if opts.OnChunk != nil {
			opts.OnChunk(path)
		}

		if err := s.processor.Trim(ctx, inputPath, path, w.Start, w.Length); err != nil {
			return chunks, fmt.Errorf("extract chunk %d: %w", w.Index, err)
		}

		chunks = append(chunks, Chunk{Window: w, Path: path})
	}

	return chunks, nil
}

// Verify interface implementation at compile time.
var _ Splitter = (*FixedSplitter)(nil)

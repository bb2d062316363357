// Package audio provides fixed-length chunk planning and splitting of audio files.
package audio

import "context"

// SplitOpts configures the behavior of audio splitting.
type SplitOpts struct {
	// StartSec is the offset in seconds the first chunk begins at.
	StartSec int

	// ChunkSec is the length of every chunk in seconds. The last chunk
	// may be shorter when the audio ends first.
	ChunkSec int

	// OnChunk, if set, is called with every chunk path as soon as the
	// transcoder has been started for it, so callers can track files
	// for cleanup even when a later chunk fails.
	OnChunk func(path string)
}

// Window is one planned chunk of the input.
type Window struct {
	// Index is the 1-based position of the chunk.
	Index int
	// Start is the offset of the chunk in seconds.
	Start int
	// Length is the requested length in seconds.
	Length int
}

// Chunk is a produced chunk file.
type Chunk struct {
	Window
	// Path is the location of the encoded chunk on disk.
	Path string
}

// Splitter defines the interface for splitting audio files into fixed-length chunks.
type Splitter interface {
	// Split probes inputPath, plans windows from opts.StartSec to the end of
	// the audio and transcodes each one, in order.
	//
	// Returns the produced chunks in window order. The caller is responsible
	// for cleaning up these temporary files.
	Split(ctx context.Context, inputPath string, opts SplitOpts) ([]Chunk, error)
}

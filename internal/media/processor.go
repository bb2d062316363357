// Package media wraps the external ffmpeg and ffprobe executables.
package media

import "context"

// Processor defines the audio operations delegated to the external transcoder.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// Trim extracts [start, start+duration) seconds of src into dst, re-encoded as MP3.
	// A duration reaching past the end of the input is clamped by the transcoder.
	// Returns ErrOutputMissing if the transcoder exits cleanly without producing dst.
	Trim(ctx context.Context, src, dst string, start, duration int) error

	// GetMediaDuration returns the total playable length of path in seconds.
	GetMediaDuration(ctx context.Context, path string) (float64, error)
}

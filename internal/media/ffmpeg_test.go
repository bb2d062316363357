package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestAudio creates a sine wave MP3 of the given duration using ffmpeg.
func createTestAudio(t *testing.T, path string, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%.1f", duration),
		"-c:a", "libmp3lame",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegProcessor(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		p := NewFFmpegProcessor("")
		if p.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", p.ffmpegPath)
		}
		if p.ffprobePath != "ffprobe" {
			t.Errorf("expected default path 'ffprobe', got %q", p.ffprobePath)
		}
		if p.runner == nil {
			t.Error("expected a default runner")
		}
	})

	t.Run("custom paths", func(t *testing.T) {
		p := NewFFmpegProcessor("/usr/local/bin/ffmpeg", WithFFprobePath("/usr/local/bin/ffprobe"))
		if p.ffmpegPath != "/usr/local/bin/ffmpeg" {
			t.Errorf("expected custom path, got %q", p.ffmpegPath)
		}
		if p.ffprobePath != "/usr/local/bin/ffprobe" {
			t.Errorf("expected custom ffprobe path, got %q", p.ffprobePath)
		}
	})

	t.Run("empty ffprobe path keeps default", func(t *testing.T) {
		p := NewFFmpegProcessor("", WithFFprobePath(""))
		if p.ffprobePath != "ffprobe" {
			t.Errorf("expected default path 'ffprobe', got %q", p.ffprobePath)
		}
	})
}

func TestTrimArgs(t *testing.T) {
	p := NewFFmpegProcessor("", WithBitrate("128k"))
	args := strings.Join(p.trimArgs("in.wav", "out.mp3", 5, 10), " ")

	for _, want := range []string{"-ss 00:00:05 -i in.wav", "-t 00:00:10", "-c:a libmp3lame", "-b:a 128k"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q should contain %q", args, want)
		}
	}
	if !strings.HasSuffix(args, "out.mp3") {
		t.Errorf("args %q should end with the output path", args)
	}

	noBitrate := strings.Join(NewFFmpegProcessor("").trimArgs("in.wav", "out.mp3", 0, 30), " ")
	if strings.Contains(noBitrate, "-b:a") {
		t.Errorf("args %q should not set a bitrate", noBitrate)
	}
}

func TestTrim_InvalidArguments(t *testing.T) {
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	if err := p.Trim(ctx, "in.mp3", "out.mp3", -1, 10); !errors.Is(err, ErrInvalidStart) {
		t.Errorf("expected ErrInvalidStart, got %v", err)
	}
	if err := p.Trim(ctx, "in.mp3", "out.mp3", 0, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestTrim_OutputMissing(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not found in PATH, skipping test")
	}

	// "true" exits cleanly without writing anything.
	p := NewFFmpegProcessor("true")
	dst := filepath.Join(t.TempDir(), "never.mp3")

	err := p.Trim(context.Background(), "in.mp3", dst, 0, 10)
	if !errors.Is(err, ErrOutputMissing) {
		t.Errorf("expected ErrOutputMissing, got %v", err)
	}
}

func TestTrim(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")

	src := filepath.Join(tmpDir, "source.mp3")
	createTestAudio(t, src, 20)

	t.Run("extracts requested range", func(t *testing.T) {
		dst := filepath.Join(tmpDir, "excerpt.mp3")

		if err := p.Trim(context.Background(), src, dst, 5, 10); err != nil {
			t.Fatalf("Trim failed: %v", err)
		}

		duration, err := p.GetMediaDuration(context.Background(), dst)
		if err != nil {
			t.Fatalf("GetMediaDuration failed: %v", err)
		}
		if duration < 9.5 || duration > 10.5 {
			t.Errorf("expected excerpt duration ~10s, got %.2f", duration)
		}
	})

	t.Run("clamps at end of stream", func(t *testing.T) {
		dst := filepath.Join(tmpDir, "tail.mp3")

		if err := p.Trim(context.Background(), src, dst, 15, 30); err != nil {
			t.Fatalf("Trim failed: %v", err)
		}

		duration, err := p.GetMediaDuration(context.Background(), dst)
		if err != nil {
			t.Fatalf("GetMediaDuration failed: %v", err)
		}
		if duration > 5.5 {
			t.Errorf("expected tail duration <= ~5s, got %.2f", duration)
		}
	})

	t.Run("non-existent source", func(t *testing.T) {
		err := p.Trim(context.Background(), "/nonexistent/audio.mp3", filepath.Join(tmpDir, "out.mp3"), 0, 10)
		if err == nil {
			t.Fatal("expected error for non-existent source, got nil")
		}
		var ffErr *FFmpegError
		if !errors.As(err, &ffErr) {
			t.Errorf("expected FFmpegError, got %T", err)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.Trim(ctx, src, filepath.Join(tmpDir, "cancelled.mp3"), 0, 10)
		if err == nil {
			t.Error("expected error for cancelled context, got nil")
		}
	})
}

func TestGetMediaDuration(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")

	t.Run("reads duration", func(t *testing.T) {
		src := filepath.Join(tmpDir, "three.mp3")
		createTestAudio(t, src, 3)

		duration, err := p.GetMediaDuration(context.Background(), src)
		if err != nil {
			t.Fatalf("GetMediaDuration failed: %v", err)
		}
		if duration < 2.9 || duration > 3.2 {
			t.Errorf("expected ~3s, got %.2f", duration)
		}
	})

	t.Run("unreadable input", func(t *testing.T) {
		garbage := filepath.Join(tmpDir, "garbage.mp3")
		if err := os.WriteFile(garbage, []byte("not audio"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		_, err := p.GetMediaDuration(context.Background(), garbage)
		if err == nil {
			t.Error("expected error for unreadable input")
		}
	})
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"12.345000\n", 12.345, false},
		{"0.000000", 0, false},
		{"  61  ", 61, false},
		{"N/A", 0, true},
		{"nan", 0, true},
		{"inf", 0, true},
		{"-1.0", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		got, err := parseDuration(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrUnreadableDuration) {
				t.Errorf("parseDuration(%q): expected ErrUnreadableDuration, got %v", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDuration(%q): unexpected error %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp3", "output.mp3"},
		Stderr: "Invalid data found when processing input",
		Err:    fmt.Errorf("exit status 1"),
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "exit status 1") {
		t.Error("Error() should contain underlying error")
	}
	if !strings.Contains(errStr, "Invalid data found") {
		t.Error("Error() should contain stderr")
	}

	unwrapped := err.Unwrap()
	if unwrapped == nil || unwrapped.Error() != "exit status 1" {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}

func TestFFmpegError_Summary(t *testing.T) {
	tests := []struct {
		name string
		err  *FFmpegError
		want string
	}{
		{
			name: "last stderr line with directories stripped",
			err: &FFmpegError{
				Args:   []string{"-i", "/tmp/audiocut/upload_123", "/tmp/audiocut/upload_123-cut.mp3"},
				Stderr: "Guessed Channel Layout\n/tmp/audiocut/upload_123: Invalid data found when processing input\n",
				Err:    errors.New("exit status 1"),
			},
			want: "upload_123: Invalid data found when processing input",
		},
		{
			name: "falls back to exit error",
			err:  &FFmpegError{Args: []string{"-i", "/tmp/x"}, Err: errors.New("exit status 1")},
			want: "exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Summary()
			if got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
			if strings.Contains(got, "/tmp/") {
				t.Errorf("Summary() leaks a directory: %q", got)
			}
		})
	}
}

func TestRunner_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not found in PATH, skipping test")
	}

	r := NewRunner(RunnerConfig{Timeout: 50 * time.Millisecond, GracePeriod: 100 * time.Millisecond})

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", []string{"5"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("process was not terminated promptly")
	}
}

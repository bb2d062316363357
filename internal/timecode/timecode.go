// Package timecode parses and formats the HH:MM:SS offsets accepted by the API.
package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Static errors for time spec parsing.
var (
	// ErrEmpty is returned when the time spec is blank.
	ErrEmpty = errors.New("timecode: empty value")
	// ErrMalformed is returned when the text is not [[HH:]MM:]SS or a second count.
	ErrMalformed = errors.New("timecode: expected HH:MM:SS or seconds")
	// ErrOutOfRange is returned when minutes or seconds exceed 59 under a larger unit.
	ErrOutOfRange = errors.New("timecode: minutes and seconds must be below 60")
	// ErrTooLarge is returned when the value exceeds MaxSeconds.
	ErrTooLarge = errors.New("timecode: value too large")
)

// MaxSeconds is the largest offset or length accepted, a little over 68 years.
const MaxSeconds = 1<<31 - 1

// Parse converts "HH:MM:SS", "MM:SS" or a bare second count into seconds.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	total := 0
	for i, part := range parts {
		v, err := parseUnit(part)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", err, s)
		}
		// Every unit after the first is bounded by the unit above it.
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrOutOfRange, s)
		}
		if total > (MaxSeconds-v)/60 {
			return 0, fmt.Errorf("%w: %q", ErrTooLarge, s)
		}
		total = total*60 + v
	}

	return total, nil
}

// parseUnit accepts only plain decimal digits, so signs and blanks are rejected.
func parseUnit(part string) (int, error) {
	if part == "" {
		return 0, ErrMalformed
	}
	for _, r := range part {
		if r < '0' || r > '9' {
			return 0, ErrMalformed
		}
	}
	v, err := strconv.Atoi(part)
	if err != nil || v > MaxSeconds {
		// Only digits got here, so any failure is a range error
		return 0, ErrTooLarge
	}
	return v, nil
}

// Format renders a second count as HH:MM:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

// Valid reports whether s parses.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

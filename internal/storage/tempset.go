package storage

import (
	"context"
	"slices"
)

// Cleaner removes temporary files.
type Cleaner interface {
	CleanupTemp(ctx context.Context, paths []string) error
}

// TempSet tracks every temporary file a request creates so they can be
// removed together when the request ends. It is not safe for concurrent use;
// a request owns its set.
type TempSet struct {
	cleaner Cleaner
	paths   []string
}

// NewTempSet creates an empty set whose files are removed through cleaner.
func NewTempSet(cleaner Cleaner) *TempSet {
	return &TempSet{cleaner: cleaner}
}

// Add registers paths for cleanup. Empty paths are ignored.
func (s *TempSet) Add(paths ...string) {
	for _, p := range paths {
		if p != "" {
			s.paths = append(s.paths, p)
		}
	}
}

// Paths returns a copy of the registered paths in insertion order.
func (s *TempSet) Paths() []string {
	return slices.Clone(s.paths)
}

// Cleanup removes every registered file. The set is emptied first, so a
// second call is a no-op and no file is deleted twice.
func (s *TempSet) Cleanup(ctx context.Context) error {
	if len(s.paths) == 0 {
		return nil
	}
	paths := s.paths
	s.paths = nil
	return s.cleaner.CleanupTemp(ctx, paths)
}

// Package engine owns the synchronization session: the change poller, the
// relink cycle that runs the three resolvers in order, sidecar generation
// on save, and the relocation protocol hooks.
package engine

import (
	"sync"
	"time"
)

// State is the explicit per-session mutable state: the open file, the
// modification-time cache the poller diffs against, and the dirty set the
// file-system watcher feeds. One State value is owned by one Session and
// passed by reference; nothing here is package-global.
type State struct {
	mu       sync.Mutex
	filePath string
	mtimes   map[string]time.Time
	dirty    map[string]struct{}
}

// NewState creates an empty session state.
func NewState() *State {
	return &State{
		mtimes: make(map[string]time.Time),
		dirty:  make(map[string]struct{}),
	}
}

// FilePath returns the vault-relative path of the open file.
func (s *State) FilePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filePath
}

// SetFilePath records the open file and clears caches that belonged to the
// previous one.
func (s *State) SetFilePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filePath = path
	s.mtimes = make(map[string]time.Time)
	s.dirty = make(map[string]struct{})
}

// MarkDirty flags a path as changed. Safe to call from the watcher
// goroutine; the next poll tick consumes the flag.
func (s *State) MarkDirty(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[path] = struct{}{}
}

// TakeDirty returns and clears the dirty set.
func (s *State) TakeDirty() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = make(map[string]struct{})
	return d
}

// MTime returns the cached modification time for path.
func (s *State) MTime(path string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.mtimes[path]
	return t, ok
}

// SetMTime caches the modification time for path.
func (s *State) SetMTime(path string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mtimes[path] = t
}

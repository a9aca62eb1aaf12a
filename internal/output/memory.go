package output

import (
	"context"
	"sync"

	"github.com/nerrad567/hotas-relay-core/internal/rebind"
)

// MemorySink retains the last committed write-set.
//
// Used in dev mode (no driver shim connected) and in tests.
type MemorySink struct {
	mu      sync.RWMutex
	last    rebind.WriteSet
	commits int
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Commit stores a copy of the write-set.
func (s *MemorySink) Commit(_ context.Context, ws rebind.WriteSet) error {
	s.mu.Lock()
	s.last = ws.Clone()
	s.commits++
	s.mu.Unlock()
	return nil
}

// Last returns the most recently committed write-set, or nil.
func (s *MemorySink) Last() rebind.WriteSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Commits returns how many write-sets have been committed.
func (s *MemorySink) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

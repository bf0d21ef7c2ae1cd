// Package content keeps a bounded in-memory window over recently seen
// notes, per feed scope. It backs feed assembly on a single node; durable
// history lives in the timeline service, not here.
package content

import (
	"context"
	"sync"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

const DefaultWindowSize = 2000

// MemoryStore is a per-scope ring of candidates ordered newest first.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[string][]model.Candidate
	limit  int
}

func NewMemoryStore(windowSize int) *MemoryStore {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &MemoryStore{
		scopes: make(map[string][]model.Candidate),
		limit:  windowSize,
	}
}

// Add records a candidate at the head of a scope's window, evicting the
// oldest entry past the window size. Duplicate IDs are dropped.
func (s *MemoryStore) Add(scope string, c model.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.scopes[scope]
	for _, existing := range window {
		if existing.ID == c.ID {
			return
		}
	}

	window = append([]model.Candidate{c}, window...)
	if len(window) > s.limit {
		window = window[:s.limit]
	}
	s.scopes[scope] = window
}

// FetchCandidates returns up to limit candidates for the scope, newest
// first. A non-empty cursor names the last candidate ID of the previous
// page; fetching resumes after it. An unknown cursor restarts from the top.
func (s *MemoryStore) FetchCandidates(_ context.Context, scope, cursor string, limit int) ([]model.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.scopes[scope]
	start := 0
	if cursor != "" {
		for i, c := range window {
			if c.ID == cursor {
				start = i + 1
				break
			}
		}
	}

	if start >= len(window) {
		return nil, nil
	}
	end := start + limit
	if limit <= 0 || end > len(window) {
		end = len(window)
	}

	out := make([]model.Candidate, end-start)
	copy(out, window[start:end])
	return out, nil
}

// Size reports the current window length for a scope.
func (s *MemoryStore) Size(scope string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scopes[scope])
}

// Prune drops candidates older than the retention horizon across all
// scopes. The maintenance scheduler calls it.
func (s *MemoryStore) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for scope, window := range s.scopes {
		kept := window[:0]
		for _, c := range window {
			if c.CreatedAt.After(cutoff) {
				kept = append(kept, c)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.scopes, scope)
		} else {
			s.scopes[scope] = kept
		}
	}
	return removed
}

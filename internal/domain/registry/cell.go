/*
Package registry tracks live client connections and their owning users.

Key concepts:
  - Per-user cells: every authenticated user maps to one cell grouping all of
    that user's concurrent sessions (web, mobile, desktop), so multi-device
    fan-out is a single lookup.
  - Flat connection index: topic fan-out resolves connection identifiers to
    live sessions without walking user cells.
  - Fine-grained locking: cells hold their own RWMutex and the flat index is
    a sync.Map, so a sweep of one user never stalls delivery to another.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// cell groups the active sessions of a single user. Mutation is rare next to
// read-heavy fan-out, hence the RWMutex.
type cell struct {
	userID string

	mu       sync.RWMutex
	sessions map[uuid.UUID]Connector
	// dead marks a cell emptied by detach and pending reclaim from the hub
	// index; attach refuses it so the hub retries against a fresh cell.
	dead bool

	lastActivityAt time.Time
}

func newCell(userID string) *cell {
	return &cell{
		userID:         userID,
		sessions:       make(map[uuid.UUID]Connector),
		lastActivityAt: time.Now(),
	}
}

// attach adds a session and reports success. A dead cell rejects the
// attach; the caller must grab a fresh cell instead.
func (c *cell) attach(conn Connector) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return false
	}
	c.lastActivityAt = time.Now()
	c.sessions[conn.ID()] = conn
	return true
}

// detach removes one session and reports whether the cell is now empty.
// An emptied cell is marked dead under the same lock, closing the window
// where a concurrent attach could land in a cell the hub is reclaiming.
func (c *cell) detach(connID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, connID)
	c.lastActivityAt = time.Now()
	if len(c.sessions) == 0 {
		c.dead = true
		return true
	}
	return false
}

// snapshot copies the session set so callers never hold the cell lock across
// a send.
func (c *cell) snapshot() []Connector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Connector, 0, len(c.sessions))
	for _, conn := range c.sessions {
		out = append(out, conn)
	}
	return out
}

func (c *cell) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

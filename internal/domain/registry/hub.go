package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrRegistryFull rejects admission past the configured connection ceiling.
var ErrRegistryFull = errors.New("connection ceiling reached")

// Hubber is the registry gateway used by the session service, the broadcast
// engine and the maintenance scheduler.
type Hubber interface {
	Register(conn Connector) error
	Unregister(userID string, connID uuid.UUID)
	Connection(connID uuid.UUID) (Connector, bool)
	ConnectionsFor(userID string) []Connector
	IsConnected(userID string) bool
	IsAlive(connID uuid.UUID) bool
	MarkSuspect(connID uuid.UUID)
	DrainSuspects() []Connector
	SweepIdle(idle time.Duration) []Connector
	Stats() Stats
	Shutdown()
}

type Stats struct {
	Users       int
	Connections int
	Suspects    int
}

// Hub implements the registry over two indices: user cells for per-user
// fan-out and a flat connection map for topic fan-out.
type Hub struct {
	// cells stores map[string]*cell keyed by user ID.
	cells sync.Map
	// conns stores map[uuid.UUID]Connector; includes unauthenticated sessions.
	conns sync.Map

	connCount atomic.Int64

	suspectMu sync.Mutex
	suspects  map[uuid.UUID]struct{}

	config hubConfig
}

type hubConfig struct {
	maxConnections int
	onAttach       func(conn Connector)
	onDetach       func(conn Connector)
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		suspects: make(map[uuid.UUID]struct{}),
		config: hubConfig{
			maxConnections: 100_000,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register admits a connection, indexes it, and fires the attach hook (the
// presence cascade). Registering the same connection twice is a no-op.
func (h *Hub) Register(conn Connector) error {
	if _, loaded := h.conns.Load(conn.ID()); loaded {
		return nil
	}
	if int(h.connCount.Load()) >= h.config.maxConnections {
		return ErrRegistryFull
	}

	h.conns.Store(conn.ID(), conn)
	h.connCount.Add(1)

	// Unauthenticated sessions stay out of user cells: there is no owning
	// identity to fan out to.
	if conn.Authenticated() {
		for {
			val, _ := h.cells.LoadOrStore(conn.UserID(), newCell(conn.UserID()))
			if val.(*cell).attach(conn) {
				break
			}
			// Lost the race against a detach that emptied this cell; drop
			// the tombstone and retry with a fresh one.
			h.cells.CompareAndDelete(conn.UserID(), val)
		}
	}

	if h.config.onAttach != nil {
		h.config.onAttach(conn)
	}
	return nil
}

// Unregister removes the connection from every index it appears in and fires
// the detach hook, which cascades into the subscription index and the
// presence tracker. Always succeeds, even if the connection is already gone.
func (h *Hub) Unregister(userID string, connID uuid.UUID) {
	val, loaded := h.conns.LoadAndDelete(connID)
	if !loaded {
		return
	}
	conn := val.(Connector)
	h.connCount.Add(-1)

	h.suspectMu.Lock()
	delete(h.suspects, connID)
	h.suspectMu.Unlock()

	if userID != "" {
		if cv, ok := h.cells.Load(userID); ok {
			if cv.(*cell).detach(connID) {
				h.cells.CompareAndDelete(userID, cv)
			}
		}
	}

	if h.config.onDetach != nil {
		h.config.onDetach(conn)
	}
	conn.Close()
}

func (h *Hub) Connection(connID uuid.UUID) (Connector, bool) {
	val, ok := h.conns.Load(connID)
	if !ok {
		return nil, false
	}
	return val.(Connector), true
}

func (h *Hub) ConnectionsFor(userID string) []Connector {
	if val, ok := h.cells.Load(userID); ok {
		return val.(*cell).snapshot()
	}
	return nil
}

func (h *Hub) IsConnected(userID string) bool {
	_, ok := h.cells.Load(userID)
	return ok
}

// IsAlive is the liveness probe the scheduler runs before trusting a
// connection with further deliveries.
func (h *Hub) IsAlive(connID uuid.UUID) bool {
	val, ok := h.conns.Load(connID)
	if !ok {
		return false
	}
	return val.(Connector).Alive()
}

// MarkSuspect queues a connection for an asynchronous liveness re-check
// after a failed delivery. The publish path never retries inline.
func (h *Hub) MarkSuspect(connID uuid.UUID) {
	h.suspectMu.Lock()
	h.suspects[connID] = struct{}{}
	h.suspectMu.Unlock()
}

// DrainSuspects returns and clears the suspect set, resolved to still-known
// connections.
func (h *Hub) DrainSuspects() []Connector {
	h.suspectMu.Lock()
	ids := make([]uuid.UUID, 0, len(h.suspects))
	for id := range h.suspects {
		ids = append(ids, id)
	}
	h.suspects = make(map[uuid.UUID]struct{})
	h.suspectMu.Unlock()

	out := make([]Connector, 0, len(ids))
	for _, id := range ids {
		if conn, ok := h.Connection(id); ok {
			out = append(out, conn)
		}
	}
	return out
}

// SweepIdle reports connections whose last activity predates the idle
// window. Eviction is the scheduler's call, not the hub's.
func (h *Hub) SweepIdle(idle time.Duration) []Connector {
	cutoff := time.Now().Add(-idle)
	var stale []Connector
	h.conns.Range(func(_, v any) bool {
		conn := v.(Connector)
		if conn.LastActivity().Before(cutoff) {
			stale = append(stale, conn)
		}
		return true
	})
	return stale
}

func (h *Hub) Stats() Stats {
	users := 0
	h.cells.Range(func(_, _ any) bool {
		users++
		return true
	})
	h.suspectMu.Lock()
	suspects := len(h.suspects)
	h.suspectMu.Unlock()
	return Stats{
		Users:       users,
		Connections: int(h.connCount.Load()),
		Suspects:    suspects,
	}
}

// Shutdown closes every live connection. Detach hooks still run so the
// presence and subscription indices drain cleanly.
func (h *Hub) Shutdown() {
	h.conns.Range(func(_, v any) bool {
		conn := v.(Connector)
		h.Unregister(conn.UserID(), conn.ID())
		return true
	})
}

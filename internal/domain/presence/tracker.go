// Package presence tracks whether users currently hold at least one live
// connection.
package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transition is the de-duplicated edge event: emitted only when a user moves
// from zero contributing connections to one, or from one to zero. Repeated
// connects and disconnects from the same user stay silent.
type Transition struct {
	UserID string
	Online bool
	At     time.Time
}

// TransitionFunc receives edge transitions. It runs outside the tracker lock
// so a slow consumer cannot stall presence bookkeeping.
type TransitionFunc func(Transition)

type state struct {
	conns        map[uuid.UUID]struct{}
	lastActivity time.Time
}

// Tracker owns the per-user online state. Invariant: a user is online iff
// their contributing-connection set is non-empty; the state record itself is
// removed once the set drains.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*state

	notify TransitionFunc
}

type Option func(*Tracker)

// WithTransitionFunc installs the edge-event consumer, typically the
// broadcast engine's presence publisher.
func WithTransitionFunc(fn TransitionFunc) Option {
	return func(t *Tracker) { t.notify = fn }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{states: make(map[string]*state)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MarkOnline adds a contributing connection for the user.
func (t *Tracker) MarkOnline(userID string, connID uuid.UUID) {
	if userID == "" {
		return
	}
	now := time.Now()

	t.mu.Lock()
	st := t.states[userID]
	wasOffline := st == nil || len(st.conns) == 0
	if st == nil {
		st = &state{conns: make(map[uuid.UUID]struct{})}
		t.states[userID] = st
	}
	st.conns[connID] = struct{}{}
	st.lastActivity = now
	t.mu.Unlock()

	if wasOffline && t.notify != nil {
		t.notify(Transition{UserID: userID, Online: true, At: now})
	}
}

// MarkOffline removes a contributing connection; the user goes offline
// exactly when the last one leaves, and the state record is dropped.
func (t *Tracker) MarkOffline(userID string, connID uuid.UUID) {
	if userID == "" {
		return
	}
	now := time.Now()

	t.mu.Lock()
	st := t.states[userID]
	if st == nil {
		t.mu.Unlock()
		return
	}
	delete(st.conns, connID)
	nowOffline := len(st.conns) == 0
	if nowOffline {
		delete(t.states, userID)
	}
	t.mu.Unlock()

	if nowOffline && t.notify != nil {
		t.notify(Transition{UserID: userID, Online: false, At: now})
	}
}

// Touch records an explicit activity ping.
func (t *Tracker) Touch(userID string) {
	t.mu.Lock()
	if st := t.states[userID]; st != nil {
		st.lastActivity = time.Now()
	}
	t.mu.Unlock()
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := t.states[userID]
	return st != nil && len(st.conns) > 0
}

func (t *Tracker) LastActivity(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if st := t.states[userID]; st != nil {
		return st.lastActivity, true
	}
	return time.Time{}, false
}

func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

func (t *Tracker) ActiveConnectionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, st := range t.states {
		total += len(st.conns)
	}
	return total
}

// Package typing holds short-lived per-conversation typing state. Expiry is
// server-authoritative: clients disconnect uncleanly, so the sweep, not the
// client, guarantees a stop signal.
package typing

import (
	"sync"
	"time"
)

// DefaultTimeout matches the upstream conversation UX: a typing signal not
// refreshed within this window auto-clears.
const DefaultTimeout = 10 * time.Second

// Signal describes one typing edge, explicit or synthetic.
type Signal struct {
	ConversationID string
	UserID         string
	IsTyping       bool
}

// EmitFunc receives start/stop signals, including the synthetic stops the
// sweep produces for vanished clients. Runs outside the manager lock.
type EmitFunc func(Signal)

type key struct {
	conversationID string
	userID         string
}

type Manager struct {
	mu      sync.Mutex
	expiry  map[key]time.Time
	timeout time.Duration

	emit EmitFunc
}

type Option func(*Manager)

func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithEmitter(fn EmitFunc) Option {
	return func(m *Manager) { m.emit = fn }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		expiry:  make(map[key]time.Time),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTyping inserts or refreshes the entry when isTyping is true and removes
// it otherwise. Every start emits, refreshes included, so counterparts can
// re-arm their client-side indicator timers; only redundant stops stay
// silent.
func (m *Manager) SetTyping(conversationID, userID string, isTyping bool) {
	k := key{conversationID, userID}

	m.mu.Lock()
	_, present := m.expiry[k]
	var emit bool
	if isTyping {
		m.expiry[k] = time.Now().Add(m.timeout)
		emit = true
	} else {
		delete(m.expiry, k)
		emit = present
	}
	m.mu.Unlock()

	if emit && m.emit != nil {
		m.emit(Signal{ConversationID: conversationID, UserID: userID, IsTyping: isTyping})
	}
}

// IsTyping reports live state at the time of the call; an expired entry not
// yet swept counts as not typing.
func (m *Manager) IsTyping(conversationID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expiry[key{conversationID, userID}]
	return ok && time.Now().Before(exp)
}

// SweepExpired removes every entry whose expiry has passed, emits a
// synthetic stop for each, and returns the expired pairs.
func (m *Manager) SweepExpired(now time.Time) []Signal {
	m.mu.Lock()
	var expired []Signal
	for k, exp := range m.expiry {
		if now.Before(exp) {
			continue
		}
		delete(m.expiry, k)
		expired = append(expired, Signal{
			ConversationID: k.conversationID,
			UserID:         k.userID,
			IsTyping:       false,
		})
	}
	m.mu.Unlock()

	if m.emit != nil {
		for _, s := range expired {
			m.emit(s)
		}
	}
	return expired
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expiry)
}

// ConversationFor normalizes a direct typing target into a stable
// conversation identifier, so both participants map to the same entry.
func ConversationFor(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return "dm:" + userA + ":" + userB
}

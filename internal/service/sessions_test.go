package service

import (
	"context"
	"testing"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
	"github.com/sonet/feed-realtime-service/internal/domain/presence"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/domain/subscription"
	"github.com/sonet/feed-realtime-service/internal/domain/typing"
)

type sessionFixture struct {
	hub      *registry.Hub
	subs     *subscription.Index
	presence *presence.Tracker
	typing   *typing.Manager
	sessions *Sessions
}

// newSessionFixture wires the hub cascade hooks the way the production
// module does, so teardown side effects are observable.
func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	subs := subscription.NewIndex(20)
	pres := presence.NewTracker()
	typ := typing.NewManager()

	hub := registry.NewHub(
		registry.WithAttachHook(func(conn registry.Connector) {
			if conn.Authenticated() {
				pres.MarkOnline(conn.UserID(), conn.ID())
			}
		}),
		registry.WithDetachHook(func(conn registry.Connector) {
			subs.UnsubscribeAll(conn.ID())
			if conn.Authenticated() {
				pres.MarkOffline(conn.UserID(), conn.ID())
			}
		}),
	)

	return &sessionFixture{
		hub:      hub,
		subs:     subs,
		presence: pres,
		typing:   typ,
		sessions: NewSessions(hub, subs, pres, typ, NewAllowAllAuth(), NewAllowAllLimiter(), discardLogger(), 16),
	}
}

func TestConnect(t *testing.T) {
	t.Run("AuthenticatesAndWelcomes", func(t *testing.T) {
		f := newSessionFixture(t)

		conn, err := f.sessions.Connect(context.Background(), Credentials{Token: "alice"})
		if err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		if !conn.Authenticated() || conn.UserID() != "alice" {
			t.Errorf("expected authenticated alice, got %q", conn.UserID())
		}
		if !f.hub.IsConnected("alice") {
			t.Error("alice should be registered")
		}
		if !f.presence.IsOnline("alice") {
			t.Error("alice should be online via the attach cascade")
		}

		events := drain(conn)
		if len(events) != 1 || events[0].Type != model.EventConnected {
			t.Fatalf("expected a connected welcome frame, got %v", events)
		}
	})

	t.Run("AdmitsUnauthenticated", func(t *testing.T) {
		f := newSessionFixture(t)

		conn, err := f.sessions.Connect(context.Background(), Credentials{})
		if err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		if conn.Authenticated() {
			t.Error("empty token should not authenticate")
		}
		if f.presence.OnlineCount() != 0 {
			t.Error("unauthenticated session must not contribute presence")
		}

		if err := f.sessions.Subscribe(conn, "timeline:home"); err != model.ErrUnauthenticated {
			t.Errorf("expected ErrUnauthenticated on subscribe, got %v", err)
		}
	})
}

func TestDisconnect(t *testing.T) {
	f := newSessionFixture(t)
	conn, _ := f.sessions.Connect(context.Background(), Credentials{Token: "alice"})
	if err := f.sessions.Subscribe(conn, "timeline:home"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	f.sessions.Disconnect(conn)

	if f.hub.IsConnected("alice") {
		t.Error("alice should be unregistered")
	}
	if f.presence.IsOnline("alice") {
		t.Error("presence should cascade offline")
	}
	if got := len(f.subs.Subscribers("timeline:home")); got != 0 {
		t.Errorf("subscriptions should be purged, %d remain", got)
	}
	if conn.Alive() {
		t.Error("connection should be closed")
	}

	// Second disconnect is harmless.
	f.sessions.Disconnect(conn)
}

func TestTyping(t *testing.T) {
	t.Run("RecordsNormalizedConversation", func(t *testing.T) {
		f := newSessionFixture(t)
		conn, _ := f.sessions.Connect(context.Background(), Credentials{Token: "bob"})
		drain(conn)

		if err := f.sessions.Typing(conn, "alice", true); err != nil {
			t.Fatalf("typing failed: %v", err)
		}
		if !f.typing.IsTyping("dm:alice:bob", "bob") {
			t.Error("typing entry missing under the normalized conversation ID")
		}

		if err := f.sessions.Typing(conn, "alice", false); err != nil {
			t.Fatalf("typing stop failed: %v", err)
		}
		if f.typing.IsTyping("dm:alice:bob", "bob") {
			t.Error("typist should have stopped")
		}
	})

	t.Run("RejectsUnauthenticated", func(t *testing.T) {
		f := newSessionFixture(t)
		conn, _ := f.sessions.Connect(context.Background(), Credentials{})

		if err := f.sessions.Typing(conn, "alice", true); err != model.ErrUnauthenticated {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})
}

func TestPing(t *testing.T) {
	f := newSessionFixture(t)
	conn, _ := f.sessions.Connect(context.Background(), Credentials{Token: "alice"})
	drain(conn)

	before := conn.LastActivity()
	time.Sleep(2 * time.Millisecond)
	f.sessions.Ping(conn)

	if !conn.LastActivity().After(before) {
		t.Error("ping should refresh connection activity")
	}
	events := drain(conn)
	if len(events) != 1 || events[0].Type != model.EventPong {
		t.Fatalf("expected a pong frame, got %v", events)
	}
}

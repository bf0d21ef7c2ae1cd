package subscription

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

func TestSubscribe(t *testing.T) {
	t.Run("RegistersSubscriber", func(t *testing.T) {
		idx := NewIndex(20)
		connID := uuid.New()

		if err := idx.Subscribe(connID, "alice", "timeline:home"); err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		subs := idx.Subscribers("timeline:home")
		if len(subs) != 1 || subs[0] != connID {
			t.Errorf("expected [%s], got %v", connID, subs)
		}
		if !idx.Holds(connID, "timeline:home") {
			t.Error("Holds should report the subscription")
		}
	})

	t.Run("IsIdempotent", func(t *testing.T) {
		idx := NewIndex(20)
		connID := uuid.New()

		for i := 0; i < 3; i++ {
			if err := idx.Subscribe(connID, "alice", "timeline:home"); err != nil {
				t.Fatalf("subscribe %d failed: %v", i, err)
			}
		}

		if got := len(idx.Subscribers("timeline:home")); got != 1 {
			t.Errorf("expected 1 subscriber, got %d", got)
		}
		if got := len(idx.TopicsFor(connID)); got != 1 {
			t.Errorf("expected 1 topic, got %d", got)
		}
	})

	t.Run("RejectsUnauthenticated", func(t *testing.T) {
		idx := NewIndex(20)

		err := idx.Subscribe(uuid.New(), "", "timeline:home")
		if err != model.ErrUnauthenticated {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("RejectsInvalidTopic", func(t *testing.T) {
		idx := NewIndex(20)

		for _, raw := range []string{"", "timeline", "timeline:", "bogus:thing", "presence:updates"} {
			if err := idx.Subscribe(uuid.New(), "alice", model.Topic(raw)); err != model.ErrInvalidTopic {
				t.Errorf("topic %q: expected ErrInvalidTopic, got %v", raw, err)
			}
		}
	})

	t.Run("AcceptsBarePresenceChannel", func(t *testing.T) {
		idx := NewIndex(20)
		connID := uuid.New()

		if err := idx.Subscribe(connID, "alice", model.PresenceTopic); err != nil {
			t.Fatalf("subscribe to presence channel failed: %v", err)
		}
		if subs := idx.Subscribers(model.PresenceTopic); len(subs) != 1 {
			t.Errorf("expected 1 presence subscriber, got %d", len(subs))
		}
	})

	t.Run("EnforcesPerConnectionCeiling", func(t *testing.T) {
		idx := NewIndex(3)
		connID := uuid.New()

		for i := 0; i < 3; i++ {
			topic := model.Topic(fmt.Sprintf("engagement:note-%d", i))
			if err := idx.Subscribe(connID, "alice", topic); err != nil {
				t.Fatalf("subscribe %d failed: %v", i, err)
			}
		}

		err := idx.Subscribe(connID, "alice", "engagement:note-overflow")
		if err != model.ErrTooManySubscriptions {
			t.Errorf("expected ErrTooManySubscriptions, got %v", err)
		}

		// A held topic still succeeds at the ceiling.
		if err := idx.Subscribe(connID, "alice", "engagement:note-0"); err != nil {
			t.Errorf("re-subscribe of held topic should succeed, got %v", err)
		}
	})
}

func TestUnsubscribe(t *testing.T) {
	t.Run("RemovesOnlyTheNamedTopic", func(t *testing.T) {
		idx := NewIndex(20)
		connID := uuid.New()
		idx.Subscribe(connID, "alice", "timeline:home")
		idx.Subscribe(connID, "alice", "timeline:trending")

		idx.Unsubscribe(connID, "timeline:home")

		if idx.Holds(connID, "timeline:home") {
			t.Error("timeline:home should be gone")
		}
		if !idx.Holds(connID, "timeline:trending") {
			t.Error("timeline:trending should survive")
		}
	})

	t.Run("ToleratesUnknownSubscription", func(t *testing.T) {
		idx := NewIndex(20)
		idx.Unsubscribe(uuid.New(), "timeline:home")
	})
}

func TestUnsubscribeAll(t *testing.T) {
	idx := NewIndex(20)
	gone := uuid.New()
	stays := uuid.New()
	idx.Subscribe(gone, "alice", "timeline:home")
	idx.Subscribe(gone, "alice", "engagement:note-1")
	idx.Subscribe(stays, "bob", "timeline:home")

	idx.UnsubscribeAll(gone)

	if got := len(idx.TopicsFor(gone)); got != 0 {
		t.Errorf("expected 0 topics for purged connection, got %d", got)
	}
	subs := idx.Subscribers("timeline:home")
	if len(subs) != 1 || subs[0] != stays {
		t.Errorf("expected only the surviving subscriber, got %v", subs)
	}

	// Empty topic sets must not linger in the index.
	topics, subscriptions := idx.Counts()
	if topics != 1 || subscriptions != 1 {
		t.Errorf("expected counts (1, 1), got (%d, %d)", topics, subscriptions)
	}
}

package amqp

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sonet/feed-realtime-service/internal/adapter/content"
	"github.com/sonet/feed-realtime-service/internal/domain/model"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/domain/subscription"
	"github.com/sonet/feed-realtime-service/internal/service"
)

type handlerFixture struct {
	hub     *registry.Hub
	store   *content.MemoryStore
	handler *FeedHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := registry.NewHub()
	subs := subscription.NewIndex(20)
	store := content.NewMemoryStore(100)
	b := service.NewBroadcaster(hub, subs, service.NewBaselinePolicy(), logger)
	return &handlerFixture{
		hub:     hub,
		store:   store,
		handler: NewFeedHandler(hub, b, store, logger),
	}
}

func (f *handlerFixture) connect(t *testing.T, userID string) registry.Connector {
	t.Helper()
	conn := registry.NewConnector(context.Background(), userID, 8)
	if err := f.hub.Register(conn); err != nil {
		t.Fatalf("register %s: %v", userID, err)
	}
	return conn
}

func TestOnNoteCreatedV1(t *testing.T) {
	f := newHandlerFixture(t)
	now := time.Now().UnixMilli()

	pubs, err := f.handler.OnNoteCreatedV1(context.Background(), &NoteCreatedV1{
		NoteID:    "n1",
		AuthorID:  "alice",
		Scope:     "public",
		Preview:   "hello",
		Sensitive: true,
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("OnNoteCreatedV1: %v", err)
	}
	if len(pubs) != 2 {
		t.Fatalf("expected 2 publications, got %d", len(pubs))
	}

	home := pubs[0]
	if home.topic != model.TimelineHomeTopic {
		t.Errorf("home topic = %s", home.topic)
	}
	if home.exclude != "alice" {
		t.Errorf("home exclude = %q, want author", home.exclude)
	}
	if home.ev.Type != model.EventTimelineUpdate || !home.ev.Sensitive || home.ev.AuthorID != "alice" {
		t.Errorf("home event = %+v", home.ev)
	}
	payload, ok := home.ev.Payload.(model.TimelineUpdatePayload)
	if !ok {
		t.Fatalf("payload type = %T", home.ev.Payload)
	}
	if payload.PostID != "n1" || payload.Preview != "hello" || payload.CreatedAt != now {
		t.Errorf("payload = %+v", payload)
	}

	author := pubs[1]
	if author.topic != model.TimelineTopic("user:alice") {
		t.Errorf("author topic = %s", author.topic)
	}
	if author.exclude != "" {
		t.Errorf("author channel should not exclude, got %q", author.exclude)
	}

	// The note also enters the candidate windows for feed assembly.
	if got := f.store.Size("home"); got != 1 {
		t.Errorf("home window size = %d, want 1", got)
	}
	if got := f.store.Size("user:alice"); got != 1 {
		t.Errorf("author window size = %d, want 1", got)
	}
}

func TestOnEngagementUpdatedV1(t *testing.T) {
	f := newHandlerFixture(t)

	pubs, err := f.handler.OnEngagementUpdatedV1(context.Background(), &EngagementUpdatedV1{
		NoteID: "n1",
		Likes:  12,
		Views:  300,
	})
	if err != nil {
		t.Fatalf("OnEngagementUpdatedV1: %v", err)
	}
	if len(pubs) != 1 {
		t.Fatalf("expected 1 publication, got %d", len(pubs))
	}
	if pubs[0].topic != model.EngagementTopic("n1") {
		t.Errorf("topic = %s", pubs[0].topic)
	}
	if pubs[0].ev.Priority != model.PriorityLow {
		t.Errorf("priority = %d, want low", pubs[0].ev.Priority)
	}
}

func TestOnNotificationCreatedV1(t *testing.T) {
	t.Run("SkipsWhenUserIsElsewhere", func(t *testing.T) {
		f := newHandlerFixture(t)
		pubs, err := f.handler.OnNotificationCreatedV1(context.Background(), &NotificationCreatedV1{
			UserID: "bob",
			Kind:   "mention",
		})
		if err != nil {
			t.Fatalf("OnNotificationCreatedV1: %v", err)
		}
		if pubs != nil {
			t.Errorf("expected no publications for a user without local connections, got %d", len(pubs))
		}
	})

	t.Run("PublishesToConnectedUser", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.connect(t, "bob")

		pubs, err := f.handler.OnNotificationCreatedV1(context.Background(), &NotificationCreatedV1{
			UserID:  "bob",
			Kind:    "mention",
			ActorID: "alice",
			NoteID:  "n1",
		})
		if err != nil {
			t.Fatalf("OnNotificationCreatedV1: %v", err)
		}
		if len(pubs) != 1 {
			t.Fatalf("expected 1 publication, got %d", len(pubs))
		}
		ev := pubs[0].ev
		if pubs[0].topic != model.NotificationTopic("bob") {
			t.Errorf("topic = %s", pubs[0].topic)
		}
		if ev.Priority != model.PriorityHigh {
			t.Errorf("priority = %d, want high", ev.Priority)
		}
		if ev.AuthorID != "alice" {
			t.Errorf("author = %q, want acting user", ev.AuthorID)
		}
	})
}

func TestOnTrendingUpdatedV1(t *testing.T) {
	f := newHandlerFixture(t)

	pubs, err := f.handler.OnTrendingUpdatedV1(context.Background(), &TrendingUpdatedV1{
		Hashtags: []string{"#go"},
		NoteIDs:  []string{"n1", "n2"},
	})
	if err != nil {
		t.Fatalf("OnTrendingUpdatedV1: %v", err)
	}
	if len(pubs) != 1 {
		t.Fatalf("expected 1 publication, got %d", len(pubs))
	}
	if pubs[0].topic != model.TimelineTrendingTopic {
		t.Errorf("topic = %s", pubs[0].topic)
	}
	payload, ok := pubs[0].ev.Payload.(model.TrendingUpdatePayload)
	if !ok {
		t.Fatalf("payload type = %T", pubs[0].ev.Payload)
	}
	if len(payload.Hashtags) != 1 || len(payload.PostIDs) != 2 {
		t.Errorf("payload = %+v", payload)
	}
}

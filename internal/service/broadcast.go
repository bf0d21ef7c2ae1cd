package service

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
	"github.com/sonet/feed-realtime-service/internal/domain/presence"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/domain/subscription"
	"github.com/sonet/feed-realtime-service/internal/domain/typing"
)

// DefaultSendTimeout bounds one delivery attempt. A connection that cannot
// accept a frame within this window is marked suspect, never retried inline.
const DefaultSendTimeout = 500 * time.Millisecond

// policyCacheTTL keeps filter lookups cheap during a fan-out burst while
// still honoring policy changes between publishes within seconds.
const policyCacheTTL = 30 * time.Second

// Publisher is the broadcast contract the transport, bus handlers and
// domain emitters share.
type Publisher interface {
	Publish(topic model.Topic, ev *model.Event, excludeUserID string) model.DeliveryReport
}

// Broadcaster resolves a domain event to its interested connections and
// delivers it with per-viewer filtering. Publish cannot fail as a whole:
// partial delivery is normal at fan-out scale and the report exists for
// observability.
type Broadcaster struct {
	hub    registry.Hubber
	subs   *subscription.Index
	policy ViewerPolicy

	// [HOT_PATH] Viewer policy lookups repeat for every recipient of every
	// publish; the expirable cache bounds that cost without freezing policy.
	policies *expirable.LRU[string, FilterDecision]

	logger      *slog.Logger
	sendTimeout time.Duration
	obs         DeliveryObserver
	exporter    atomic.Pointer[TransitionExporter]
}

// DeliveryObserver receives per-publish delivery reports; the metrics
// exporter implements it.
type DeliveryObserver interface {
	ObserveDelivery(kind model.TopicKind, report model.DeliveryReport)
}

type BroadcasterOption func(*Broadcaster)

func WithDeliveryObserver(obs DeliveryObserver) BroadcasterOption {
	return func(b *Broadcaster) { b.obs = obs }
}

func WithSendTimeout(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		if d > 0 {
			b.sendTimeout = d
		}
	}
}

func NewBroadcaster(hub registry.Hubber, subs *subscription.Index, policy ViewerPolicy, logger *slog.Logger, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		hub:         hub,
		subs:        subs,
		policy:      policy,
		policies:    expirable.NewLRU[string, FilterDecision](10_000, nil, policyCacheTTL),
		logger:      logger,
		sendTimeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish fans the event out to the topic's subscribers. For notification
// topics the owning user's connections are unioned in even without an
// explicit subscribe: notifications are opt-out, not opt-in.
func (b *Broadcaster) Publish(topic model.Topic, ev *model.Event, excludeUserID string) model.DeliveryReport {
	recipients := b.resolve(topic)
	report := model.DeliveryReport{Topic: topic}

	for _, conn := range recipients {
		report.Attempted++

		if excludeUserID != "" && conn.UserID() == excludeUserID {
			report.Filtered++
			continue
		}
		if !b.allowed(conn.UserID(), ev) {
			report.Filtered++
			continue
		}

		if conn.Send(ev, b.sendTimeout) {
			report.Delivered++
		} else {
			report.Failed++
			// Async liveness re-check; the publish path moves on.
			b.hub.MarkSuspect(conn.ID())
		}
	}

	if report.Failed > 0 {
		b.logger.Debug("BROADCAST_PARTIAL",
			"topic", string(topic),
			"attempted", report.Attempted,
			"failed", report.Failed,
		)
	}
	if b.obs != nil {
		b.obs.ObserveDelivery(topic.Kind(), report)
	}
	return report
}

// resolve snapshots the recipient set before any send so no index lock is
// held across I/O-bound work.
func (b *Broadcaster) resolve(topic model.Topic) []registry.Connector {
	ids := b.subs.Subscribers(topic)

	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]registry.Connector, 0, len(ids))
	for _, id := range ids {
		if conn, ok := b.hub.Connection(id); ok {
			seen[id] = struct{}{}
			out = append(out, conn)
		}
	}

	if topic.Kind() == model.TopicNotifications {
		for _, conn := range b.hub.ConnectionsFor(topic.Identifier()) {
			if _, dup := seen[conn.ID()]; !dup {
				out = append(out, conn)
			}
		}
	}
	return out
}

func (b *Broadcaster) allowed(viewerID string, ev *model.Event) bool {
	if viewerID == "" {
		// Unauthenticated sessions hold no subscriptions; nothing to filter.
		return true
	}
	decide, ok := b.policies.Get(viewerID)
	if !ok {
		decide = b.policy.FilterFor(viewerID)
		b.policies.Add(viewerID, decide)
	}
	return decide(ev)
}

// InvalidatePolicy drops a cached viewer policy after an upstream change.
func (b *Broadcaster) InvalidatePolicy(viewerID string) {
	b.policies.Remove(viewerID)
}

// SetPresenceExporter plugs in the outbound bus dispatcher once it exists.
// Transitions before that point are broadcast locally only.
func (b *Broadcaster) SetPresenceExporter(e TransitionExporter) {
	b.exporter.Store(&e)
}

// PublishPresence converts an edge transition into a presence_update for the
// presence topic subscribers and mirrors it to the bus exporter.
func (b *Broadcaster) PublishPresence(tr presence.Transition) model.DeliveryReport {
	ev := model.NewEvent(model.EventPresenceUpdate, model.PresenceTopic, model.PresenceUpdatePayload{
		UserID: tr.UserID,
		Online: tr.Online,
	}).WithPriority(model.PriorityLow).WithAuthor(tr.UserID)

	if e := b.exporter.Load(); e != nil {
		(*e).ExportPresence(tr)
	}
	return b.Publish(model.PresenceTopic, ev, tr.UserID)
}

// PublishTyping delivers a typing edge to the conversation topic and
// directly to the counterpart's connections, excluding the typist's own
// sessions.
func (b *Broadcaster) PublishTyping(sig typing.Signal) model.DeliveryReport {
	topic := model.TypingTopic(sig.ConversationID)
	ev := model.NewEvent(model.EventTypingIndicator, topic, model.TypingIndicatorPayload{
		ConversationID: sig.ConversationID,
		UserID:         sig.UserID,
		IsTyping:       sig.IsTyping,
	}).WithPriority(model.PriorityLow).WithAuthor(sig.UserID)

	report := b.Publish(topic, ev, sig.UserID)

	// Direct-user delivery mirrors the notification union: a conversation
	// participant sees typing state without an explicit subscribe.
	for _, userID := range conversationParticipants(sig.ConversationID) {
		if userID == sig.UserID {
			continue
		}
		for _, conn := range b.hub.ConnectionsFor(userID) {
			if b.subs.Holds(conn.ID(), topic) {
				// Already reached through the topic publish above.
				continue
			}
			report.Attempted++
			if conn.Send(ev, b.sendTimeout) {
				report.Delivered++
			} else {
				report.Failed++
				b.hub.MarkSuspect(conn.ID())
			}
		}
	}
	return report
}

// conversationParticipants decodes the "dm:a:b" direct-conversation form;
// other conversation kinds resolve through explicit subscriptions only.
func conversationParticipants(conversationID string) []string {
	parts := strings.Split(conversationID, ":")
	if len(parts) == 3 && parts[0] == "dm" {
		return []string{parts[1], parts[2]}
	}
	return nil
}

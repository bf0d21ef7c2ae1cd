package pubsub

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/sonet/feed-realtime-service/internal/domain/presence"
)

// TopicPresenceChanged is the outbound stream for peer services interested
// in online/offline edges.
const TopicPresenceChanged = "feed.presence.changed.v1"

// EventDispatcher is the outbound bus contract. The broadcast engine stays
// agnostic of the transport implementation behind it.
type EventDispatcher interface {
	ExportPresence(tr presence.Transition)
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewEventDispatcher(pub message.Publisher, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{publisher: pub, logger: logger}
}

type presenceChangedV1 struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
	At     int64  `json:"at"`
}

// ExportPresence mirrors a local presence edge to the bus. Publish failures
// are logged and dropped: presence is ephemeral state and the next edge
// supersedes this one anyway.
func (d *eventDispatcher) ExportPresence(tr presence.Transition) {
	payload, err := json.Marshal(presenceChangedV1{
		UserID: tr.UserID,
		Online: tr.Online,
		At:     tr.At.UnixMilli(),
	})
	if err != nil {
		d.logger.Error("PRESENCE_EXPORT_MARSHAL_FAILED", "user_id", tr.UserID, "err", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("occurred_at", time.Now().UTC().Format(time.RFC3339))

	if err := d.publisher.Publish(TopicPresenceChanged, msg); err != nil {
		d.logger.Error("PRESENCE_EXPORT_FAILED", "user_id", tr.UserID, "err", err)
	}
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

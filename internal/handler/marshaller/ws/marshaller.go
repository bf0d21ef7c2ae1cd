// Package wsmarshaller shapes domain events into the JSON frames the
// WebSocket protocol speaks.
package wsmarshaller

import (
	"encoding/json"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// WSEvent is the outbound frame envelope. Every server-to-client message
// shares this shape regardless of payload type.
type WSEvent struct {
	Event   string      `json:"event"`
	ID      string      `json:"id"`
	Channel model.Topic `json:"channel,omitempty"`
	SentAt  int64       `json:"sent_at"`
	Payload any         `json:"payload,omitempty"`
}

// MarshalEvent renders the wire bytes for an event. The result is cached on
// the event: a fan-out to ten thousand subscribers marshals once, not ten
// thousand times.
func MarshalEvent(ev *model.Event) ([]byte, error) {
	if b := ev.GetCached(); b != nil {
		return b, nil
	}

	b, err := json.Marshal(&WSEvent{
		Event:   string(ev.Type),
		ID:      ev.ID,
		Channel: ev.Topic,
		SentAt:  ev.OccurredAt,
		Payload: ev.Payload,
	})
	if err != nil {
		return nil, err
	}
	ev.SetCached(b)
	return b, nil
}

package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// publication is one broadcast produced by a bus event. A single event may
// fan out to several channels.
type publication struct {
	topic   model.Topic
	ev      *model.Event
	exclude string
}

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) ([]publication, error)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic, handling Panic Recovery, Decoding
// and Fan-out.
func Bind[T any](h *FeedHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		pubs, err := fn(msg.Context(), payload)
		if err != nil {
			return err // NACK: Business failure triggers Retry policy.
		}

		// [FAN_OUT_DISPATCH]
		// Local delivery only: every node consumes the full stream, so a
		// re-publish here would duplicate frames on other nodes.
		for _, p := range pubs {
			h.broadcaster.Publish(p.topic, p.ev, p.exclude)
		}
		return nil
	}
}

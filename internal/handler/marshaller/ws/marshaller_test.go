package wsmarshaller

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

func TestMarshalEvent(t *testing.T) {
	t.Run("EnvelopeShape", func(t *testing.T) {
		ev := model.NewEvent(model.EventEngagementUpdate, model.EngagementTopic("n1"), model.EngagementUpdatePayload{
			PostID: "n1",
			Likes:  3,
		})

		b, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("MarshalEvent: %v", err)
		}

		var frame struct {
			Event   string `json:"event"`
			ID      string `json:"id"`
			Channel string `json:"channel"`
			SentAt  int64  `json:"sent_at"`
			Payload struct {
				PostID string `json:"post_id"`
				Likes  int64  `json:"likes"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(b, &frame); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if frame.Event != "engagement_update" {
			t.Errorf("event = %q", frame.Event)
		}
		if frame.ID != ev.ID {
			t.Errorf("id = %q, want %q", frame.ID, ev.ID)
		}
		if frame.Channel != "engagement:n1" {
			t.Errorf("channel = %q", frame.Channel)
		}
		if frame.SentAt != ev.OccurredAt {
			t.Errorf("sent_at = %d, want %d", frame.SentAt, ev.OccurredAt)
		}
		if frame.Payload.PostID != "n1" || frame.Payload.Likes != 3 {
			t.Errorf("payload = %+v", frame.Payload)
		}
	})

	t.Run("SecondCallReturnsCachedBytes", func(t *testing.T) {
		ev := model.NewEvent(model.EventPresenceUpdate, model.PresenceTopic, model.PresenceUpdatePayload{
			UserID: "alice",
			Online: true,
		})

		first, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("MarshalEvent: %v", err)
		}
		// Mutate after the first marshal; the cache must win.
		ev.Payload = model.PresenceUpdatePayload{UserID: "alice", Online: false}
		second, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("MarshalEvent: %v", err)
		}
		if &first[0] != &second[0] {
			t.Error("expected the cached byte slice on the second call")
		}
	})

	t.Run("ConcurrentFanOutMarshalsConsistently", func(t *testing.T) {
		ev := model.NewEvent(model.EventTimelineUpdate, model.TimelineHomeTopic, model.TimelineUpdatePayload{
			PostID:   "n1",
			AuthorID: "alice",
		})

		const writers = 16
		results := make([][]byte, writers)
		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func(i int) {
				defer wg.Done()
				b, err := MarshalEvent(ev)
				if err != nil {
					t.Errorf("writer %d: %v", i, err)
					return
				}
				results[i] = b
			}(i)
		}
		wg.Wait()

		for i := 1; i < writers; i++ {
			if string(results[i]) != string(results[0]) {
				t.Fatalf("writer %d saw different bytes", i)
			}
		}
	})
}

func TestParseClientFrame(t *testing.T) {
	t.Run("Subscribe", func(t *testing.T) {
		frame, err := ParseClientFrame([]byte(`{"type":"subscribe","channel":"timeline:home"}`))
		if err != nil {
			t.Fatalf("ParseClientFrame: %v", err)
		}
		if frame.Type != FrameSubscribe || frame.Channel != "timeline:home" {
			t.Errorf("frame = %+v", frame)
		}
	})

	t.Run("TypingStart", func(t *testing.T) {
		frame, err := ParseClientFrame([]byte(`{"type":"typing_start","target_user_id":"bob"}`))
		if err != nil {
			t.Fatalf("ParseClientFrame: %v", err)
		}
		if frame.Type != FrameTypingStart || frame.TargetUserID != "bob" {
			t.Errorf("frame = %+v", frame)
		}
	})

	t.Run("PingNeedsNoFields", func(t *testing.T) {
		if _, err := ParseClientFrame([]byte(`{"type":"ping"}`)); err != nil {
			t.Errorf("ParseClientFrame: %v", err)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		if _, err := ParseClientFrame([]byte(`{"type":`)); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})

	t.Run("MissingRequiredField", func(t *testing.T) {
		for _, raw := range []string{
			`{"type":"subscribe"}`,
			`{"type":"unsubscribe"}`,
			`{"type":"typing_start"}`,
			`{"type":"typing_stop"}`,
		} {
			if _, err := ParseClientFrame([]byte(raw)); err == nil {
				t.Errorf("expected error for %s", raw)
			}
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := ParseClientFrame([]byte(`{"type":"shout"}`))
		if !errors.Is(err, ErrUnknownFrame) {
			t.Errorf("expected ErrUnknownFrame, got %v", err)
		}
	})
}

package amqp

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestBind(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("MalformedPayloadIsAcked", func(t *testing.T) {
		called := false
		handler := Bind(f.handler, func(ctx context.Context, payload *NoteCreatedV1) ([]publication, error) {
			called = true
			return nil, nil
		})

		if err := handler(message.NewMessage("m1", []byte("{broken"))); err != nil {
			t.Errorf("expected ACK for undecodable payload, got %v", err)
		}
		if called {
			t.Error("domain handler must not run on a decode failure")
		}
	})

	t.Run("BusinessErrorIsNacked", func(t *testing.T) {
		boom := errors.New("downstream unavailable")
		handler := Bind(f.handler, func(ctx context.Context, payload *NoteCreatedV1) ([]publication, error) {
			return nil, boom
		})

		if err := handler(message.NewMessage("m2", []byte("{}"))); !errors.Is(err, boom) {
			t.Errorf("expected the business error back, got %v", err)
		}
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {
		handler := Bind(f.handler, func(ctx context.Context, payload *NoteCreatedV1) ([]publication, error) {
			panic("handler bug")
		})

		if err := handler(message.NewMessage("m3", []byte("{}"))); err != nil {
			t.Errorf("expected recovered panic to ACK, got %v", err)
		}
	})
}

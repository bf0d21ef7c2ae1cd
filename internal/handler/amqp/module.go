package amqp

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	adapterpubsub "github.com/sonet/feed-realtime-service/internal/adapter/pubsub"
	"github.com/sonet/feed-realtime-service/internal/service"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		adapterpubsub.NewEventDispatcher,
		NewFeedHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *FeedHandler, router *message.Router, sub message.Subscriber, dispatcher adapterpubsub.EventDispatcher) error {
		return h.RegisterHandlers(router, sub, dispatcher)
	}),

	// Presence edges flow out through the same broker connection.
	fx.Invoke(func(b *service.Broadcaster, dispatcher adapterpubsub.EventDispatcher) {
		b.SetPresenceExporter(dispatcher)
	}),

	fx.Invoke(func(lc fx.Lifecycle, router *message.Router) {
		runCtx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() { errCh <- router.Run(runCtx) }()
				select {
				case <-router.Running():
					return nil
				case err := <-errCh:
					return err
				}
			},
			OnStop: func(context.Context) error {
				cancel()
				return router.Close()
			},
		})
	}),
)

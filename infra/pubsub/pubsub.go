// Package pubsub owns the AMQP connectivity: one durable publisher for the
// outbound stream and a subscriber factory for the consumer handlers.
package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wamqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/sonet/feed-realtime-service/config"
)

// Provider hands out watermill publishers and subscribers bound to the
// broker from a single config.
type Provider struct {
	cfg    wamqp.Config
	logger watermill.LoggerAdapter
}

func NewProvider(cfg *config.Config, logger watermill.LoggerAdapter) *Provider {
	return &Provider{
		cfg: wamqp.NewDurablePubSubConfig(
			cfg.Broker.AMQPURL,
			wamqp.GenerateQueueNameTopicNameWithSuffix("."+cfg.Broker.ConsumerGroup),
		),
		logger: logger,
	}
}

func (p *Provider) BuildPublisher() (message.Publisher, error) {
	pub, err := wamqp.NewPublisher(p.cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("build amqp publisher: %w", err)
	}
	return pub, nil
}

func (p *Provider) BuildSubscriber() (message.Subscriber, error) {
	sub, err := wamqp.NewSubscriber(p.cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("build amqp subscriber: %w", err)
	}
	return sub, nil
}

var Module = fx.Module("pubsub",
	fx.Provide(
		NewProvider,
		func(p *Provider) (message.Publisher, error) { return p.BuildPublisher() },
		func(p *Provider) (message.Subscriber, error) { return p.BuildSubscriber() },
	),
	fx.Invoke(func(lc fx.Lifecycle, pub message.Publisher, sub message.Subscriber) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				if err := sub.Close(); err != nil {
					return err
				}
				return pub.Close()
			},
		})
	}),
)

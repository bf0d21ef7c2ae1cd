package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/sonet/feed-realtime-service/internal/adapter/content"
	adapterpubsub "github.com/sonet/feed-realtime-service/internal/adapter/pubsub"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/service"
)

const (
	// ------------------- TOPICS (CONSUMED) ---------------------
	TopicNoteCreated         = "feed.note.created.v1"
	TopicEngagementUpdated   = "feed.engagement.updated.v1"
	TopicNotificationCreated = "feed.notification.created.v1"
	TopicTrendingUpdated     = "feed.trending.updated.v1"

	// ------------------- QUEUES --------------------------------
	FeedPoisonTopic = "feed-realtime.incoming-processor.v1.poison"
)

type FeedHandler struct {
	hub         registry.Hubber
	broadcaster *service.Broadcaster
	store       *content.MemoryStore
	logger      *slog.Logger
}

func NewFeedHandler(hub registry.Hubber, broadcaster *service.Broadcaster, store *content.MemoryStore, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{hub: hub, broadcaster: broadcaster, store: store, logger: logger}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, logger)
}

// [REGISTRATION_PIPELINE]
func (h *FeedHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, dispatcher adapterpubsub.EventDispatcher) error {
	poison, err := middleware.PoisonQueue(dispatcher.Publisher(), FeedPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_NOTE_CREATED", TopicNoteCreated, Bind(h, h.OnNoteCreatedV1)},
		{"ON_ENGAGEMENT_UPDATED", TopicEngagementUpdated, Bind(h, h.OnEngagementUpdatedV1)},
		{"ON_NOTIFICATION_CREATED", TopicNotificationCreated, Bind(h, h.OnNotificationCreatedV1)},
		{"ON_TRENDING_UPDATED", TopicTrendingUpdated, Bind(h, h.OnTrendingUpdatedV1)},
	}

	for _, c := range configs {
		router.AddNoPublisherHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "handlers", len(configs))
	return nil
}

package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"

	"github.com/sonet/feed-realtime-service/config"
	"github.com/sonet/feed-realtime-service/infra/metrics"
	"github.com/sonet/feed-realtime-service/infra/pubsub"
	httpsrv "github.com/sonet/feed-realtime-service/infra/server/http"
	"github.com/sonet/feed-realtime-service/internal/adapter/content"
	amqphandler "github.com/sonet/feed-realtime-service/internal/handler/amqp"
	"github.com/sonet/feed-realtime-service/internal/ranking"
	"github.com/sonet/feed-realtime-service/internal/ranking/overdrive"
	"github.com/sonet/feed-realtime-service/internal/service"
)

const contentRetention = 24 * time.Hour

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,

			func() *content.MemoryStore {
				return content.NewMemoryStore(content.DefaultWindowSize)
			},
			func(cfg *config.Config, logger *slog.Logger) ranking.Gateway {
				return overdrive.NewClient(cfg.Ranking.OverdriveURL, logger,
					overdrive.WithTimeout(cfg.Ranking.OverdriveTimeout),
				)
			},
			func(cfg *config.Config, store *content.MemoryStore, gateway ranking.Gateway, logger *slog.Logger, obs ranking.Observer) *ranking.Assembler {
				return ranking.NewAssembler(store, gateway, logger,
					ranking.WithDefaultMode(ranking.Mode(cfg.Ranking.DefaultMode)),
					ranking.WithDefaultLimit(cfg.Ranking.DefaultLimit),
					ranking.WithHybridHeadShare(cfg.Ranking.HybridHeadShare),
					ranking.WithObserver(obs),
				)
			},
		),

		// The candidate window self-cleans alongside the other sweeps.
		fx.Invoke(func(scheduler *service.Scheduler, store *content.MemoryStore) {
			scheduler.AddTask("content_prune", time.Hour, func() {
				store.Prune(contentRetention)
			})
		}),

		metrics.Module,
		service.Module,
		pubsub.Module,
		amqphandler.Module,
		httpsrv.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})).With("service", cfg.Service.Name)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

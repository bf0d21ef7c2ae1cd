// Package http hosts the service's single HTTP listener: the WebSocket
// upgrade endpoint, the feed read API, metrics and health.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/sonet/feed-realtime-service/config"
	"github.com/sonet/feed-realtime-service/internal/handler/feedapi"
	"github.com/sonet/feed-realtime-service/internal/handler/ws"
)

func NewRouter(wsHandler *ws.WSHandler, feedHandler *feedapi.FeedHandler, registry *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/ws", wsHandler)
	r.With(middleware.Timeout(10 * time.Second)).Get("/v1/feed", feedHandler.ServeHTTP)

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

var Module = fx.Module("http-server",
	fx.Provide(
		ws.NewWSHandler,
		feedapi.NewFeedHandler,
		NewRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, router chi.Router, logger *slog.Logger) {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					logger.Info("HTTP_SERVER_STARTED", "addr", srv.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("HTTP_SERVER_STOPPED", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			},
		})
	}),
)

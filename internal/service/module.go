package service

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.uber.org/fx"

	"github.com/sonet/feed-realtime-service/config"
	"github.com/sonet/feed-realtime-service/internal/domain/presence"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/domain/subscription"
	"github.com/sonet/feed-realtime-service/internal/domain/typing"
)

// TransitionExporter pushes presence transitions beyond this process (the
// AMQP dispatcher implements it). Optional: local broadcast works without it.
type TransitionExporter interface {
	ExportPresence(tr presence.Transition)
}

// emitRelay breaks the construction cycle between the domain emitters and
// the broadcaster: the tracker and typing manager are built first with
// relay-backed callbacks, the broadcaster is plugged in afterwards.
type emitRelay struct {
	broadcaster atomic.Pointer[Broadcaster]
}

func (r *emitRelay) presence(tr presence.Transition) {
	if b := r.broadcaster.Load(); b != nil {
		b.PublishPresence(tr)
	}
}

func (r *emitRelay) typing(sig typing.Signal) {
	if b := r.broadcaster.Load(); b != nil {
		b.PublishTyping(sig)
	}
}

// Graph is the fully wired realtime core. A single constructor owns the
// ordering: index and trackers first, hub with cascade hooks on top, the
// broadcaster last.
type Graph struct {
	fx.Out

	Hub         registry.Hubber
	Subs        *subscription.Index
	Presence    *presence.Tracker
	Typing      *typing.Manager
	Broadcaster *Broadcaster
}

func NewGraph(cfg *config.Config, logger *slog.Logger, obs DeliveryObserver) Graph {
	relay := &emitRelay{}

	subs := subscription.NewIndex(cfg.Registry.MaxSubsPerConnection)
	pres := presence.NewTracker(presence.WithTransitionFunc(relay.presence))
	typ := typing.NewManager(
		typing.WithTimeout(cfg.Typing.Timeout),
		typing.WithEmitter(relay.typing),
	)

	// Detach cascades: a vanished connection must leave no trace in the
	// subscription index or the presence tracker.
	hub := registry.NewHub(
		registry.WithMaxConnections(cfg.Registry.MaxConnections),
		registry.WithAttachHook(func(conn registry.Connector) {
			if conn.Authenticated() {
				pres.MarkOnline(conn.UserID(), conn.ID())
			}
		}),
		registry.WithDetachHook(func(conn registry.Connector) {
			subs.UnsubscribeAll(conn.ID())
			if conn.Authenticated() {
				pres.MarkOffline(conn.UserID(), conn.ID())
			}
		}),
	)

	broadcaster := NewBroadcaster(hub, subs, NewBaselinePolicy(), logger,
		WithSendTimeout(cfg.Broadcast.SendTimeout),
		WithDeliveryObserver(obs),
	)
	relay.broadcaster.Store(broadcaster)

	return Graph{
		Hub:         hub,
		Subs:        subs,
		Presence:    pres,
		Typing:      typ,
		Broadcaster: broadcaster,
	}
}

var Module = fx.Module(
	"service",

	fx.Provide(
		NewGraph,

		fx.Annotate(
			func(cfg *config.Config, hub registry.Hubber, subs *subscription.Index, pres *presence.Tracker, typ *typing.Manager, auth AuthValidator, limiter RateLimiter, logger *slog.Logger) *Sessions {
				return NewSessions(hub, subs, pres, typ, auth, limiter, logger, cfg.Registry.MailboxSize)
			},
			fx.As(new(Deliverer)),
		),

		func(cfg *config.Config, hub registry.Hubber, typ *typing.Manager, sink StatsSink, logger *slog.Logger) *Scheduler {
			return NewScheduler(hub, typ, sink, logger,
				WithSuspectProbeInterval(cfg.Registry.SuspectProbeInterval),
				WithIdleSweep(cfg.Registry.IdleSweepInterval, cfg.Registry.IdleTimeout),
				WithTypingSweepInterval(cfg.Typing.SweepInterval),
				WithStatsInterval(cfg.Registry.StatsExportInterval),
			)
		},
	),

	fx.Provide(
		NewAllowAllAuth,
		NewAllowAllLimiter,
	),

	fx.Invoke(func(lc fx.Lifecycle, scheduler *Scheduler, hub registry.Hubber) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				scheduler.Start(context.WithoutCancel(ctx))
				return nil
			},
			OnStop: func(context.Context) error {
				scheduler.Stop()
				hub.Shutdown()
				return nil
			},
		})
	}),
)

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/domain/typing"
)

const (
	DefaultSuspectProbeInterval = 15 * time.Second
	DefaultIdleSweepInterval    = time.Minute
	DefaultIdleTimeout          = 5 * time.Minute
	DefaultStatsInterval        = 30 * time.Second
)

// StatsSink receives periodic registry snapshots; the metrics exporter
// implements it.
type StatsSink interface {
	ObserveRegistry(stats registry.Stats)
	ObserveTyping(active int)
}

// Scheduler runs the background hygiene loops: probing suspect connections,
// evicting idle sessions, expiring stale typing entries and exporting
// registry stats. Each loop is an independently cancellable named task.
type Scheduler struct {
	hub    registry.Hubber
	typing *typing.Manager
	sink   StatsSink
	logger *slog.Logger

	suspectEvery time.Duration
	idleEvery    time.Duration
	idleTimeout  time.Duration
	typingEvery  time.Duration
	statsEvery   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup

	extra []extraTask
}

type extraTask struct {
	name  string
	every time.Duration
	fn    func()
}

type SchedulerOption func(*Scheduler)

func WithSuspectProbeInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.suspectEvery = d }
}

func WithIdleSweep(every, timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.idleEvery = every
		s.idleTimeout = timeout
	}
}

func WithTypingSweepInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.typingEvery = d }
}

func WithStatsInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.statsEvery = d }
}

func NewScheduler(hub registry.Hubber, typ *typing.Manager, sink StatsSink, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		hub:          hub,
		typing:       typ,
		sink:         sink,
		logger:       logger,
		suspectEvery: DefaultSuspectProbeInterval,
		idleEvery:    DefaultIdleSweepInterval,
		idleTimeout:  DefaultIdleTimeout,
		typingEvery:  typing.DefaultTimeout / 2,
		statsEvery:   DefaultStatsInterval,
		cancels:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTask registers an extra named loop. Call before Start.
func (s *Scheduler) AddTask(name string, every time.Duration, fn func()) {
	s.extra = append(s.extra, extraTask{name: name, every: every, fn: fn})
}

// Start launches every maintenance loop. Loops stop on ctx cancellation or
// on Stop, whichever comes first.
func (s *Scheduler) Start(ctx context.Context) {
	s.spawn(ctx, "suspect_probe", s.suspectEvery, s.probeSuspects)
	s.spawn(ctx, "idle_sweep", s.idleEvery, s.sweepIdle)
	s.spawn(ctx, "typing_sweep", s.typingEvery, s.sweepTyping)
	if s.sink != nil {
		s.spawn(ctx, "stats_export", s.statsEvery, s.exportStats)
	}
	for _, t := range s.extra {
		s.spawn(ctx, t.name, t.every, t.fn)
	}
}

// Stop cancels every running task and waits for the loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for name, cancel := range s.cancels {
		cancel()
		delete(s.cancels, name)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) spawn(ctx context.Context, name string, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}
	taskCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[name] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		s.logger.Debug("MAINTENANCE_TASK_STARTED", "task", name, "interval", every)
		for {
			select {
			case <-taskCtx.Done():
				s.logger.Debug("MAINTENANCE_TASK_STOPPED", "task", name)
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// probeSuspects re-checks connections flagged after failed deliveries and
// evicts the ones that are gone. Eviction runs the full detach cascade.
func (s *Scheduler) probeSuspects() {
	suspects := s.hub.DrainSuspects()
	evicted := 0
	for _, conn := range suspects {
		if conn.Alive() {
			continue
		}
		s.hub.Unregister(conn.UserID(), conn.ID())
		evicted++
	}
	if len(suspects) > 0 {
		s.logger.Info("SUSPECTS_PROBED", "probed", len(suspects), "evicted", evicted)
	}
}

func (s *Scheduler) sweepIdle() {
	stale := s.hub.SweepIdle(s.idleTimeout)
	for _, conn := range stale {
		s.hub.Unregister(conn.UserID(), conn.ID())
	}
	if len(stale) > 0 {
		s.logger.Info("IDLE_CONNECTIONS_EVICTED", "count", len(stale), "idle_timeout", s.idleTimeout)
	}
}

// sweepTyping expires stale typing entries. The manager emits a synthetic
// stop for each one, so counterparts never see a typing indicator outlive
// its author.
func (s *Scheduler) sweepTyping() {
	expired := s.typing.SweepExpired(time.Now())
	if len(expired) > 0 {
		s.logger.Debug("TYPING_ENTRIES_EXPIRED", "count", len(expired))
	}
}

func (s *Scheduler) exportStats() {
	s.sink.ObserveRegistry(s.hub.Stats())
	s.sink.ObserveTyping(s.typing.ActiveCount())
}

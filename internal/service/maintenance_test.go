package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/domain/typing"
)

func TestProbeSuspects(t *testing.T) {
	hub := registry.NewHub()
	typ := typing.NewManager()
	s := NewScheduler(hub, typ, nil, discardLogger())

	alive := registry.NewConnector(context.Background(), "alice", 4)
	dead := registry.NewConnector(context.Background(), "bob", 4)
	hub.Register(alive)
	hub.Register(dead)

	dead.Close()
	hub.MarkSuspect(alive.ID())
	hub.MarkSuspect(dead.ID())

	s.probeSuspects()

	if !hub.IsConnected("alice") {
		t.Error("live suspect should survive the probe")
	}
	if hub.IsConnected("bob") {
		t.Error("dead suspect should be evicted")
	}
}

func TestSweepIdle(t *testing.T) {
	hub := registry.NewHub()
	typ := typing.NewManager()
	s := NewScheduler(hub, typ, nil, discardLogger(),
		WithIdleSweep(time.Minute, 5*time.Millisecond))

	idle := registry.NewConnector(context.Background(), "alice", 4)
	hub.Register(idle)
	time.Sleep(10 * time.Millisecond)

	s.sweepIdle()

	if hub.IsConnected("alice") {
		t.Error("idle connection should be evicted")
	}
	if idle.Alive() {
		t.Error("evicted connection should be closed")
	}
}

// A client that disconnects mid-typing must still produce a stop for its
// counterpart, via the expiry sweep rather than the socket.
func TestTypingStopAfterVanish(t *testing.T) {
	var stops []typing.Signal
	typ := typing.NewManager(
		typing.WithTimeout(10*time.Second),
		typing.WithEmitter(func(s typing.Signal) {
			if !s.IsTyping {
				stops = append(stops, s)
			}
		}),
	)
	hub := registry.NewHub()
	s := NewScheduler(hub, typ, nil, discardLogger())

	typ.SetTyping("dm:alice:bob", "alice", true)
	// The client vanishes here; nothing explicit arrives.

	s.sweepTyping() // too early, entry still fresh
	if len(stops) != 0 {
		t.Fatalf("premature stop: %v", stops)
	}

	expired := typ.SweepExpired(time.Now().Add(11 * time.Second))
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired entry, got %d", len(expired))
	}
	if len(stops) != 1 || stops[0].UserID != "alice" {
		t.Errorf("counterpart never saw the synthetic stop: %v", stops)
	}
}

type captureSink struct {
	registryObservations atomic.Int64
	typingObservations   atomic.Int64
}

func (c *captureSink) ObserveRegistry(registry.Stats) { c.registryObservations.Add(1) }
func (c *captureSink) ObserveTyping(int)              { c.typingObservations.Add(1) }

func TestSchedulerLifecycle(t *testing.T) {
	hub := registry.NewHub()
	typ := typing.NewManager()
	sink := &captureSink{}
	s := NewScheduler(hub, typ, sink, discardLogger(),
		WithSuspectProbeInterval(time.Millisecond),
		WithIdleSweep(time.Millisecond, time.Hour),
		WithTypingSweepInterval(time.Millisecond),
		WithStatsInterval(time.Millisecond),
	)

	extraRuns := atomic.Int64{}
	s.AddTask("extra", time.Millisecond, func() { extraRuns.Add(1) })

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if sink.registryObservations.Load() == 0 {
		t.Error("stats export never ran")
	}
	if extraRuns.Load() == 0 {
		t.Error("extra task never ran")
	}

	// Stop is terminal: no further ticks after it returns.
	after := extraRuns.Load()
	time.Sleep(10 * time.Millisecond)
	if extraRuns.Load() != after {
		t.Error("task ticked after Stop")
	}

	// A second Stop must not panic or hang.
	s.Stop()
}

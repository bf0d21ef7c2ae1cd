package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the contract the hub, broadcast engine and transport handlers
// share. The concrete type stays unexported to force interface usage and to
// keep the pool private.
type Connector interface {
	ID() uuid.UUID
	UserID() string
	Authenticated() bool
	CreatedAt() time.Time
	LastActivity() time.Time
	Touch()
	Send(ev *model.Event, timeout time.Duration) bool
	Recv() <-chan *model.Event
	Alive() bool
	SentCount() uint64
	DroppedCount() uint64
	Close()
}

type connect struct {
	id        uuid.UUID
	userID    string
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh chan *model.Event

	closeOnce sync.Once

	// [ATOMIC_FIELDS] Touched on every frame; never behind a lock.
	lastActivityAt int64
	sentCount      uint64
	droppedCount   uint64
}

// [POOL] Connections churn with client reconnects; reuse keeps GC pressure flat.
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector builds a pooled connection. An empty userID yields an
// unauthenticated connection: it is registered, it can ping, but it cannot
// hold subscriptions.
func NewConnector(ctx context.Context, userID string, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, userID, bufferSize)
	return c
}

// reset wipes pooled state via a struct literal so stale fields from a prior
// owner can never leak, and re-arms the sync.Once guard.
func (c *connect) reset(ctx context.Context, userID string, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:             uuid.New(),
		userID:         userID,
		createdAt:      time.Now(),
		ctx:            childCtx,
		cancelFn:       cancel,
		sendCh:         make(chan *model.Event, bufferSize),
		lastActivityAt: time.Now().UnixNano(),
	}
}

func (c *connect) ID() uuid.UUID        { return c.id }
func (c *connect) UserID() string       { return c.userID }
func (c *connect) Authenticated() bool  { return c.userID != "" }
func (c *connect) CreatedAt() time.Time { return c.createdAt }

func (c *connect) Touch() {
	atomic.StoreInt64(&c.lastActivityAt, time.Now().UnixNano())
}

func (c *connect) LastActivity() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastActivityAt))
}

// Alive reports whether the session context is still open. The transport
// cancels it on disconnect, the hub on eviction.
func (c *connect) Alive() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

func (c *connect) SentCount() uint64    { return atomic.LoadUint64(&c.sentCount) }
func (c *connect) DroppedCount() uint64 { return atomic.LoadUint64(&c.droppedCount) }

// Send attempts to enqueue the event into the session mailbox within the
// delivery window. It never blocks past timeout, so a stalled consumer can
// not hold the publish path hostage.
func (c *connect) Send(ev *model.Event, timeout time.Duration) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		atomic.AddUint64(&c.sentCount, 1)
		return true
	default:
		// Buffer saturated; wait out the delivery window or shed.
		return c.sendSlow(ev, timeout)
	}
}

func (c *connect) sendSlow(ev *model.Event, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		atomic.AddUint64(&c.sentCount, 1)
		return true
	case <-ctx.Done():
		return c.handleBackpressure(ev)
	}
}

// handleBackpressure sheds low-priority traffic when the buffer stays
// saturated for the whole delivery window. A high-priority event may evict
// one lower-priority event to make room.
func (c *connect) handleBackpressure(ev *model.Event) bool {
	if ev.Priority <= model.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	select {
	case old := <-c.sendCh:
		if old.Priority < ev.Priority {
			select {
			case c.sendCh <- ev:
				atomic.AddUint64(&c.sentCount, 1)
				return true
			default:
			}
		} else {
			// Put the displaced event back, best effort.
			select {
			case c.sendCh <- old:
			default:
			}
		}
	default:
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan *model.Event { return c.sendCh }

// Close terminates the session exactly once and recycles the object. Safe to
// call concurrently from the hub (eviction), the transport handler (defer)
// and shutdown.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()

		if c.sendCh != nil {
			// Signals the transport pump (via !ok) to exit gracefully.
			close(c.sendCh)
		}

		c.sendCh = nil
		connectPool.Put(c)
	})
}

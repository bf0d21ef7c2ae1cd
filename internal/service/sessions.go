package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
	"github.com/sonet/feed-realtime-service/internal/domain/presence"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	"github.com/sonet/feed-realtime-service/internal/domain/subscription"
	"github.com/sonet/feed-realtime-service/internal/domain/typing"
)

// Deliverer is the session lifecycle contract the transport handlers use.
// It keeps the handler a thin pump: every protocol decision lives here.
type Deliverer interface {
	Connect(ctx context.Context, creds Credentials) (registry.Connector, error)
	Disconnect(conn registry.Connector)
	Subscribe(conn registry.Connector, channel string) error
	Unsubscribe(conn registry.Connector, channel string)
	Typing(conn registry.Connector, targetUserID string, isTyping bool) error
	Ping(conn registry.Connector)
}

// ErrRateLimited is the admission refusal surfaced as an error frame.
var ErrRateLimited = errors.New("rate limit exceeded")

type Sessions struct {
	hub      registry.Hubber
	subs     *subscription.Index
	presence *presence.Tracker
	typing   *typing.Manager
	auth     AuthValidator
	limiter  RateLimiter
	logger   *slog.Logger

	mailboxSize int
}

func NewSessions(
	hub registry.Hubber,
	subs *subscription.Index,
	pres *presence.Tracker,
	typ *typing.Manager,
	auth AuthValidator,
	limiter RateLimiter,
	logger *slog.Logger,
	mailboxSize int,
) *Sessions {
	if mailboxSize <= 0 {
		mailboxSize = 1024
	}
	return &Sessions{
		hub:         hub,
		subs:        subs,
		presence:    pres,
		typing:      typ,
		auth:        auth,
		limiter:     limiter,
		logger:      logger,
		mailboxSize: mailboxSize,
	}
}

// Connect validates credentials and registers the connection. A failed
// validation still yields a live, unauthenticated session: it can ping and
// receive an error on subscribe, which beats a silent close for clients
// with expired tokens.
func (s *Sessions) Connect(ctx context.Context, creds Credentials) (registry.Connector, error) {
	var userID string
	if identity, err := s.auth.Validate(ctx, creds); err == nil {
		userID = identity.UserID
	} else {
		s.logger.Debug("SESSION_UNAUTHENTICATED", "remote_ip", creds.RemoteIP, "err", err)
	}

	conn := registry.NewConnector(ctx, userID, s.mailboxSize)
	if err := s.hub.Register(conn); err != nil {
		conn.Close()
		return nil, err
	}

	s.logger.Info("SESSION_OPENED",
		"conn_id", conn.ID(),
		"user_id", userID,
		"authenticated", conn.Authenticated(),
	)

	// Welcome frame; also carries the server clock for client-side skew.
	conn.Send(model.NewEvent(model.EventConnected, "", model.ConnectedPayload{
		ConnectionID:  conn.ID().String(),
		UserID:        userID,
		Authenticated: conn.Authenticated(),
		ServerTime:    time.Now().UnixMilli(),
	}).WithPriority(model.PriorityHigh), time.Second)

	return conn, nil
}

// Disconnect tears the session down. The hub's detach hook cascades into
// the subscription index and the presence tracker, so calling this twice is
// harmless.
func (s *Sessions) Disconnect(conn registry.Connector) {
	s.hub.Unregister(conn.UserID(), conn.ID())
	s.logger.Info("SESSION_CLOSED", "conn_id", conn.ID(), "user_id", conn.UserID())
}

func (s *Sessions) Subscribe(conn registry.Connector, channel string) error {
	if !s.limiter.Allow(conn.UserID(), "subscribe") {
		return ErrRateLimited
	}
	conn.Touch()
	return s.subs.Subscribe(conn.ID(), conn.UserID(), model.Topic(channel))
}

func (s *Sessions) Unsubscribe(conn registry.Connector, channel string) {
	conn.Touch()
	s.subs.Unsubscribe(conn.ID(), model.Topic(channel))
}

// Typing records a typing edge toward a direct-conversation counterpart.
// The manager owns the broadcast emission, including the later synthetic
// stop if this client vanishes.
func (s *Sessions) Typing(conn registry.Connector, targetUserID string, isTyping bool) error {
	if !conn.Authenticated() {
		return model.ErrUnauthenticated
	}
	if !s.limiter.Allow(conn.UserID(), "typing") {
		return ErrRateLimited
	}
	conn.Touch()

	conversationID := typing.ConversationFor(conn.UserID(), targetUserID)
	s.typing.SetTyping(conversationID, conn.UserID(), isTyping)
	return nil
}

// Ping refreshes activity state on both the connection and the presence
// record.
func (s *Sessions) Ping(conn registry.Connector) {
	conn.Touch()
	s.presence.Touch(conn.UserID())
	conn.Send(model.NewEvent(model.EventPong, "", model.PongPayload{
		ServerTime: time.Now().UnixMilli(),
	}).WithPriority(model.PriorityHigh), time.Second)
}

package service

import (
	"context"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// The persistence, auth, admission and moderation layers live outside this
// service. These ports are their whole surface here; production wiring
// injects real clients, the defaults below keep a dev deployment
// self-contained.

// Credentials is what the transport hands over at connect time.
type Credentials struct {
	Token    string
	RemoteIP string
}

// Identity is the authenticated result.
type Identity struct {
	UserID string
}

// AuthValidator resolves connection credentials to a user identity.
type AuthValidator interface {
	Validate(ctx context.Context, creds Credentials) (Identity, error)
}

// RateLimiter answers "is this user allowed to perform this action right
// now". Denials are absorbed into an error reply, never a disconnect.
type RateLimiter interface {
	Allow(userID string, action string) bool
}

// FilterDecision tells the broadcast engine whether one event may reach one
// viewer.
type FilterDecision func(ev *model.Event) bool

// ViewerPolicy supplies the per-viewer content filter: sensitivity opt-outs,
// blocked and muted authors, locale restrictions. Policy is owned by the
// moderation collaborator; this service only evaluates it per recipient at
// publish time.
type ViewerPolicy interface {
	FilterFor(viewerID string) FilterDecision
}

// --- permissive defaults -------------------------------------------------

type allowAllAuth struct{}

// NewAllowAllAuth accepts any non-empty token and treats it as the user ID.
// Development wiring only.
func NewAllowAllAuth() AuthValidator { return allowAllAuth{} }

func (allowAllAuth) Validate(_ context.Context, creds Credentials) (Identity, error) {
	if creds.Token == "" {
		return Identity{}, model.ErrUnauthenticated
	}
	return Identity{UserID: creds.Token}, nil
}

type allowAllLimiter struct{}

func NewAllowAllLimiter() RateLimiter { return allowAllLimiter{} }

func (allowAllLimiter) Allow(string, string) bool { return true }

type baselinePolicy struct{}

// NewBaselinePolicy suppresses only sensitive-flagged content; everything
// else passes. Real policy comes from the moderation collaborator.
func NewBaselinePolicy() ViewerPolicy { return baselinePolicy{} }

func (baselinePolicy) FilterFor(string) FilterDecision {
	return func(ev *model.Event) bool {
		return !ev.Sensitive
	}
}

package model

import (
	"errors"
	"fmt"
)

// Subscription errors surfaced to the offending connection only.
var (
	ErrTooManySubscriptions = errors.New("subscription ceiling reached")
	ErrUnauthenticated      = errors.New("connection is not authenticated")
	ErrInvalidTopic         = errors.New("invalid topic")
)

// GatewayErrorKind classifies a failed remote ranking call. Every kind maps
// to the same fallback at the call site; the distinction exists for logs and
// metrics only.
type GatewayErrorKind string

const (
	GatewayUnavailable GatewayErrorKind = "unavailable"
	GatewayTimeout     GatewayErrorKind = "timeout"
	GatewayRejected    GatewayErrorKind = "rejected"
)

type GatewayError struct {
	Kind GatewayErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ranking gateway: %s", e.Kind)
	}
	return fmt.Sprintf("ranking gateway: %s: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func NewGatewayError(kind GatewayErrorKind, err error) *GatewayError {
	return &GatewayError{Kind: kind, Err: err}
}

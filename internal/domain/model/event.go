package model

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType names the outbound frame types of the delivery protocol.
type EventType string

const (
	EventTimelineUpdate   EventType = "timeline_update"
	EventEngagementUpdate EventType = "engagement_update"
	EventNotification     EventType = "notification"
	EventTypingIndicator  EventType = "typing_indicator"
	EventPresenceUpdate   EventType = "presence_update"
	EventTrendingUpdate   EventType = "trending_update"
	EventPong             EventType = "pong"
	EventError            EventType = "error"
	EventSuccess          EventType = "success"
	EventConnected        EventType = "connected"
)

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Event is one data packet flowing from a publisher through the hub to a
// connection mailbox. The wire representation is marshaled once per fan-out
// and cached, never per recipient.
type Event struct {
	ID         string
	Type       EventType
	Topic      Topic
	AuthorID   string // originating user, used for self-echo suppression
	Sensitive  bool   // viewer opt-out gate, set by the publisher
	Payload    any
	Priority   EventPriority
	OccurredAt int64 // unix milliseconds

	// Wire-bytes cache, written concurrently by recipient write pumps
	// during a fan-out.
	cached atomic.Pointer[[]byte]
}

// NewEvent stamps identity and occurrence time; payload stays opaque until
// the transport marshaller runs.
func NewEvent(t EventType, topic Topic, payload any) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		Topic:      topic,
		Payload:    payload,
		Priority:   PriorityNormal,
		OccurredAt: time.Now().UnixMilli(),
	}
}

func (e *Event) WithPriority(p EventPriority) *Event {
	e.Priority = p
	return e
}

func (e *Event) WithAuthor(userID string) *Event {
	e.AuthorID = userID
	return e
}

func (e *Event) GetCached() []byte {
	if p := e.cached.Load(); p != nil {
		return *p
	}
	return nil
}

func (e *Event) SetCached(b []byte) { e.cached.Store(&b) }

// Payload shapes for the outbound frame types.

type TimelineUpdatePayload struct {
	PostID    string `json:"post_id"`
	AuthorID  string `json:"author_id"`
	Scope     string `json:"scope"`
	CreatedAt int64  `json:"created_at"`
	Preview   string `json:"preview,omitempty"`
}

type EngagementUpdatePayload struct {
	PostID   string `json:"post_id"`
	Likes    int64  `json:"likes"`
	Reposts  int64  `json:"reposts"`
	Replies  int64  `json:"replies"`
	Quotes   int64  `json:"quotes"`
	Views    int64  `json:"views"`
	PollVote string `json:"poll_vote,omitempty"`
}

type NotificationPayload struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	ActorID string `json:"actor_id,omitempty"`
	PostID  string `json:"post_id,omitempty"`
	Body    string `json:"body,omitempty"`
}

type TypingIndicatorPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type PresenceUpdatePayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

type TrendingUpdatePayload struct {
	Hashtags []string `json:"hashtags"`
	PostIDs  []string `json:"post_ids,omitempty"`
}

type ConnectedPayload struct {
	ConnectionID  string `json:"connection_id"`
	UserID        string `json:"user_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
	ServerTime    int64  `json:"server_time"`
}

type PongPayload struct {
	ServerTime int64 `json:"server_time"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type SuccessPayload struct {
	Op      string `json:"op,omitempty"`
	Channel string `json:"channel,omitempty"`
}

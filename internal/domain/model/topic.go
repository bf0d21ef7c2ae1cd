package model

import "strings"

// Topic names a delivery channel in "kind:identifier" form, e.g.
// "timeline:home", "engagement:note-42", "notifications:user-7",
// "typing:dm:a:b". The identifier may itself contain colons. The shared
// presence channel is the one bare topic, just "presence".
type Topic string

// TopicKind is the routing class encoded in a topic's first segment.
type TopicKind string

const (
	TopicTimeline      TopicKind = "timeline"
	TopicEngagement    TopicKind = "engagement"
	TopicNotifications TopicKind = "notifications"
	TopicTyping        TopicKind = "typing"
	TopicPresence      TopicKind = "presence"
)

// PresenceTopic is the single shared channel for presence updates; the kind
// is the whole topic, there is no per-user presence channel.
const PresenceTopic Topic = "presence"

// TimelineHomeTopic carries new-note updates for the global home timeline.
const TimelineHomeTopic Topic = "timeline:home"

// TimelineTrendingTopic carries trending refreshes.
const TimelineTrendingTopic Topic = "timeline:trending"

func TimelineTopic(identifier string) Topic {
	return Topic(string(TopicTimeline) + ":" + identifier)
}

func EngagementTopic(postID string) Topic {
	return Topic(string(TopicEngagement) + ":" + postID)
}

func NotificationTopic(userID string) Topic {
	return Topic(string(TopicNotifications) + ":" + userID)
}

func TypingTopic(conversationID string) Topic {
	return Topic(string(TopicTyping) + ":" + conversationID)
}

func (t Topic) Kind() TopicKind {
	kind, _, _ := strings.Cut(string(t), ":")
	return TopicKind(kind)
}

func (t Topic) Identifier() string {
	_, id, _ := strings.Cut(string(t), ":")
	return id
}

// Valid reports whether the topic parses as a known kind with a non-empty
// identifier, or is the bare presence channel. Unknown kinds are rejected at
// subscribe time so the index only ever holds routable channels.
func (t Topic) Valid() bool {
	kind, id, found := strings.Cut(string(t), ":")
	if TopicKind(kind) == TopicPresence {
		return !found
	}
	if !found || id == "" {
		return false
	}
	switch TopicKind(kind) {
	case TopicTimeline, TopicEngagement, TopicNotifications, TopicTyping:
		return true
	}
	return false
}

package amqp

import (
	"context"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// [ON_NOTE_CREATED]
// A new note fans out to the global home channel and to the author's own
// timeline channel for follower views, and lands in the candidate window
// for feed assembly.
func (h *FeedHandler) OnNoteCreatedV1(_ context.Context, raw *NoteCreatedV1) ([]publication, error) {
	candidate := model.Candidate{
		ID:        raw.NoteID,
		AuthorID:  raw.AuthorID,
		CreatedAt: time.UnixMilli(raw.CreatedAt),
	}
	h.store.Add("home", candidate)
	h.store.Add("user:"+raw.AuthorID, candidate)

	payload := model.TimelineUpdatePayload{
		PostID:    raw.NoteID,
		AuthorID:  raw.AuthorID,
		Scope:     raw.Scope,
		CreatedAt: raw.CreatedAt,
		Preview:   raw.Preview,
	}

	home := model.NewEvent(model.EventTimelineUpdate, model.TimelineHomeTopic, payload).
		WithAuthor(raw.AuthorID)
	home.Sensitive = raw.Sensitive

	authorTopic := model.TimelineTopic("user:" + raw.AuthorID)
	author := model.NewEvent(model.EventTimelineUpdate, authorTopic, payload).
		WithAuthor(raw.AuthorID)
	author.Sensitive = raw.Sensitive

	return []publication{
		// The author's own sessions already rendered the note optimistically.
		{topic: model.TimelineHomeTopic, ev: home, exclude: raw.AuthorID},
		{topic: authorTopic, ev: author},
	}, nil
}

// [ON_ENGAGEMENT_UPDATED]
func (h *FeedHandler) OnEngagementUpdatedV1(_ context.Context, raw *EngagementUpdatedV1) ([]publication, error) {
	topic := model.EngagementTopic(raw.NoteID)
	ev := model.NewEvent(model.EventEngagementUpdate, topic, model.EngagementUpdatePayload{
		PostID:   raw.NoteID,
		Likes:    raw.Likes,
		Reposts:  raw.Reposts,
		Replies:  raw.Replies,
		Quotes:   raw.Quotes,
		Views:    raw.Views,
		PollVote: raw.PollVote,
	}).WithPriority(model.PriorityLow)

	return []publication{{topic: topic, ev: ev}}, nil
}

// [ON_NOTIFICATION_CREATED]
func (h *FeedHandler) OnNotificationCreatedV1(_ context.Context, raw *NotificationCreatedV1) ([]publication, error) {
	// [LOCALITY_FILTER]
	// Every node consumes the stream; only the node holding the target
	// user's connections does the work.
	if !h.hub.IsConnected(raw.UserID) {
		return nil, nil
	}

	topic := model.NotificationTopic(raw.UserID)
	ev := model.NewEvent(model.EventNotification, topic, model.NotificationPayload{
		UserID:  raw.UserID,
		Kind:    raw.Kind,
		ActorID: raw.ActorID,
		PostID:  raw.NoteID,
		Body:    raw.Body,
	}).WithPriority(model.PriorityHigh).WithAuthor(raw.ActorID)

	return []publication{{topic: topic, ev: ev}}, nil
}

// [ON_TRENDING_UPDATED]
func (h *FeedHandler) OnTrendingUpdatedV1(_ context.Context, raw *TrendingUpdatedV1) ([]publication, error) {
	ev := model.NewEvent(model.EventTrendingUpdate, model.TimelineTrendingTopic, model.TrendingUpdatePayload{
		Hashtags: raw.Hashtags,
		PostIDs:  raw.NoteIDs,
	}).WithPriority(model.PriorityLow)

	return []publication{{topic: model.TimelineTrendingTopic, ev: ev}}, nil
}

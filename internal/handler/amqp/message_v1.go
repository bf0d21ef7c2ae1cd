package amqp

// Bus payload shapes, versioned with the topic they ride on.

type NoteCreatedV1 struct {
	NoteID    string `json:"note_id"`
	AuthorID  string `json:"author_id"`
	Scope     string `json:"scope,omitempty"` // "home", "local", ...
	Preview   string `json:"preview,omitempty"`
	Sensitive bool   `json:"sensitive,omitempty"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
}

type EngagementUpdatedV1 struct {
	NoteID   string `json:"note_id"`
	Likes    int64  `json:"likes"`
	Reposts  int64  `json:"reposts"`
	Replies  int64  `json:"replies"`
	Quotes   int64  `json:"quotes"`
	Views    int64  `json:"views"`
	PollVote string `json:"poll_vote,omitempty"`
}

type NotificationCreatedV1 struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"` // "follow", "like", "repost", "mention", ...
	ActorID string `json:"actor_id,omitempty"`
	NoteID  string `json:"note_id,omitempty"`
	Body    string `json:"body,omitempty"`
}

type TrendingUpdatedV1 struct {
	Hashtags []string `json:"hashtags"`
	NoteIDs  []string `json:"note_ids,omitempty"`
}

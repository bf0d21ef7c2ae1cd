package model

import (
	"sort"
	"time"
)

// Candidate is one scorable feed entry. Creation time travels with the
// identifier because the chronological variant and the tie-break rule both
// need it without a store round-trip.
type Candidate struct {
	ID        string
	AuthorID  string
	CreatedAt time.Time
}

// Factor is a named numeric ranking signal. Order is preserved so the
// explanation reads the way the engine produced it.
type Factor struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RankedItem is the explainable output of one ranking pass.
type RankedItem struct {
	CandidateID string    `json:"candidate_id"`
	Score       float64   `json:"score"`
	Factors     []Factor  `json:"factors,omitempty"`
	Reasons     []string  `json:"reasons,omitempty"`
	CreatedAt   time.Time `json:"-"` // carried for the tie-break rule
}

// EngagementProfile carries the viewer's recent interaction signals. Opaque
// to this service beyond pass-through; populated by upstream collaborators.
type EngagementProfile struct {
	UserID        string
	FollowingIDs  map[string]struct{}
	RecentLikes   []string
	RecentReplies []string
}

// ScopeConfig is the per-scope ranking configuration override.
type ScopeConfig struct {
	RecencyWeight    float64
	EngagementWeight float64
	Flags            map[string]bool
}

// RankingRequest is one scoring call.
type RankingRequest struct {
	ViewerID   string
	Candidates []Candidate
	Limit      int
	Profile    *EngagementProfile
	Config     *ScopeConfig
}

// SortRanked orders items by strictly non-increasing score; ties break by
// candidate recency, then candidate identifier, so repeated calls over the
// same input are deterministic.
func SortRanked(items []RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].CandidateID < items[j].CandidateID
	})
}

// Truncate bounds items to limit; limit <= 0 means no bound.
func Truncate(items []RankedItem, limit int) []RankedItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

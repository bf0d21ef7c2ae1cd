package ranking

import (
	"context"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// Chronological is the trivial baseline and the fallback target when remote
// ranking is unavailable: score is the candidate's creation time, so later
// posts sort first.
type Chronological struct{}

func NewChronological() *Chronological { return &Chronological{} }

// ScoreCandidates produces one item per candidate, ordered by descending
// timestamp. The output is always a permutation of the input.
func (e *Chronological) ScoreCandidates(_ context.Context, req model.RankingRequest) []model.RankedItem {
	items := make([]model.RankedItem, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		recency := float64(c.CreatedAt.UnixMilli())
		items = append(items, model.RankedItem{
			CandidateID: c.ID,
			Score:       recency,
			Factors:     []model.Factor{{Name: "recency", Value: recency}},
			Reasons:     []string{"chronological"},
			CreatedAt:   c.CreatedAt,
		})
	}
	model.SortRanked(items)
	return items
}

// UpdateEngagement is a no-op: this variant has no learned state.
func (e *Chronological) UpdateEngagement(context.Context, EngagementSignal) {}

// TrainOnEngagementData is a no-op: this variant has no learned state.
func (e *Chronological) TrainOnEngagementData(context.Context, []EngagementSignal) {}

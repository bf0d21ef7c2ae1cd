package ranking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// FallbackReason tags items ranked by the deterministic substitute ordering.
const FallbackReason = "overdrive_fallback_ranking"

// RemoteScored delegates scoring to the ranking oracle behind Gateway. Every
// gateway failure, whatever its kind, is absorbed into the same deterministic
// position-based fallback: a ranking call must always return a usable, fully
// populated ordering, never an empty list or an error.
type RemoteScored struct {
	gateway Gateway
	logger  *slog.Logger
}

func NewRemoteScored(gateway Gateway, logger *slog.Logger) *RemoteScored {
	return &RemoteScored{gateway: gateway, logger: logger}
}

func (e *RemoteScored) ScoreCandidates(ctx context.Context, req model.RankingRequest) []model.RankedItem {
	ids := make([]string, 0, len(req.Candidates))
	created := make(map[string]int, len(req.Candidates))
	for idx, c := range req.Candidates {
		ids = append(ids, c.ID)
		created[c.ID] = idx
	}

	items, err := e.gateway.RankForYou(ctx, req.ViewerID, ids, req.Limit)
	if err != nil {
		var gwErr *model.GatewayError
		kind := model.GatewayUnavailable
		if errors.As(err, &gwErr) {
			kind = gwErr.Kind
		}
		e.logger.Warn("RANKING_FALLBACK",
			"viewer_id", req.ViewerID,
			"candidates", len(ids),
			"kind", string(kind),
			"err", err,
		)
		return e.fallback(req)
	}

	// The oracle scored and explained the items; carry creation times back
	// in so the pipeline tie-break stays deterministic.
	for i := range items {
		if idx, ok := created[items[i].CandidateID]; ok {
			items[i].CreatedAt = req.Candidates[idx].CreatedAt
		}
	}
	model.SortRanked(items)
	return model.Truncate(items, req.Limit)
}

// fallback substitutes a position-based ordering that preserves the input
// candidate order: score = 1.0 - 0.001*index.
func (e *RemoteScored) fallback(req model.RankingRequest) []model.RankedItem {
	n := len(req.Candidates)
	if req.Limit > 0 && req.Limit < n {
		n = req.Limit
	}

	items := make([]model.RankedItem, 0, n)
	for i := 0; i < n; i++ {
		c := req.Candidates[i]
		items = append(items, model.RankedItem{
			CandidateID: c.ID,
			Score:       1.0 - 0.001*float64(i),
			Factors: []model.Factor{
				{Name: "position", Value: float64(i)},
				{Name: "overdrive_fallback", Value: 1.0},
			},
			Reasons:   []string{FallbackReason},
			CreatedAt: c.CreatedAt,
		})
	}
	return items
}

// UpdateEngagement is a no-op: the oracle ingests engagement out-of-band.
func (e *RemoteScored) UpdateEngagement(context.Context, EngagementSignal) {}

// TrainOnEngagementData is a no-op: training happens oracle-side.
func (e *RemoteScored) TrainOnEngagementData(context.Context, []EngagementSignal) {}

// Package ranking decides the order candidate posts appear in for a viewer.
package ranking

import (
	"context"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// Mode selects the scoring strategy. The set is closed: a new strategy is a
// new variant behind Engine, never a patched call site.
type Mode string

const (
	ModeChronological Mode = "chronological"
	ModeRemoteScored  Mode = "remote"
	ModeHybrid        Mode = "hybrid"
)

// EngagementSignal is one interaction observation fed back into a learned
// variant.
type EngagementSignal struct {
	UserID string
	PostID string
	Action string // like, repost, reply, dwell
	Weight float64
}

// Engine scores a candidate set for one viewer. ScoreCandidates never
// returns an error: a broken feed is worse than a mediocre one, so every
// variant degrades instead of failing.
type Engine interface {
	ScoreCandidates(ctx context.Context, req model.RankingRequest) []model.RankedItem
	UpdateEngagement(ctx context.Context, sig EngagementSignal)
	TrainOnEngagementData(ctx context.Context, batch []EngagementSignal)
}

// Gateway is the remote ranking oracle contract. A single attempt per call;
// retrying inside the gateway would blow the caller's latency budget.
type Gateway interface {
	RankForYou(ctx context.Context, viewerID string, candidateIDs []string, limit int) ([]model.RankedItem, error)
}

package ranking

import (
	"context"
	"log/slog"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// Observer receives scoring outcomes. The metrics exporter implements it;
// a nil observer disables the export without a stub.
type Observer interface {
	ObserveScore(mode string, fallback bool, duration time.Duration)
}

// engineMiddleware decorates an Engine with scoring observability without
// touching the scoring logic itself.
type engineMiddleware struct {
	next   Engine
	mode   Mode
	logger *slog.Logger
	obs    Observer
}

func withLogging(next Engine, mode Mode, logger *slog.Logger, obs Observer) Engine {
	return &engineMiddleware{next: next, mode: mode, logger: logger, obs: obs}
}

func (m *engineMiddleware) ScoreCandidates(ctx context.Context, req model.RankingRequest) []model.RankedItem {
	start := time.Now()
	items := m.next.ScoreCandidates(ctx, req)

	fellBack := false
	if len(items) > 0 {
		for _, r := range items[0].Reasons {
			if r == FallbackReason {
				fellBack = true
				break
			}
		}
	}

	m.logger.Debug("RANKING_SCORED",
		"mode", string(m.mode),
		"viewer_id", req.ViewerID,
		"candidates", len(req.Candidates),
		"returned", len(items),
		"fallback", fellBack,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if m.obs != nil {
		m.obs.ObserveScore(string(m.mode), fellBack, time.Since(start))
	}
	return items
}

func (m *engineMiddleware) UpdateEngagement(ctx context.Context, sig EngagementSignal) {
	m.next.UpdateEngagement(ctx, sig)
}

func (m *engineMiddleware) TrainOnEngagementData(ctx context.Context, batch []EngagementSignal) {
	m.next.TrainOnEngagementData(ctx, batch)
}

package ranking

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// ContentStore supplies ordered candidates for a scope. Durable storage is
// an external collaborator; this is its whole surface here.
type ContentStore interface {
	FetchCandidates(ctx context.Context, scope string, cursor string, limit int) ([]model.Candidate, error)
}

// FeedOptions carries the per-request knobs of one feed build.
type FeedOptions struct {
	Limit   int
	Mode    Mode // empty means the assembler default
	Cursor  string
	Profile *model.EngagementProfile
	Config  *model.ScopeConfig
}

// Assembler orchestrates candidate fetch, engine dispatch and hybrid
// merging into one ordered, explainable feed.
type Assembler struct {
	store   ContentStore
	engines map[Mode]Engine
	logger  *slog.Logger

	defaultMode  Mode
	defaultLimit int
	// headShare is the fraction of a hybrid feed served by the remote
	// engine before the chronological tail begins.
	headShare float64
	obs       Observer
}

type AssemblerOption func(*Assembler)

func WithDefaultMode(m Mode) AssemblerOption {
	return func(a *Assembler) { a.defaultMode = m }
}

func WithDefaultLimit(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.defaultLimit = n
		}
	}
}

func WithHybridHeadShare(share float64) AssemblerOption {
	return func(a *Assembler) {
		if share > 0 && share < 1 {
			a.headShare = share
		}
	}
}

func WithObserver(obs Observer) AssemblerOption {
	return func(a *Assembler) { a.obs = obs }
}

func NewAssembler(store ContentStore, gateway Gateway, logger *slog.Logger, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		store:        store,
		logger:       logger,
		defaultMode:  ModeChronological,
		defaultLimit: 20,
		headShare:    0.7,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.engines = map[Mode]Engine{
		ModeChronological: withLogging(NewChronological(), ModeChronological, logger, a.obs),
		ModeRemoteScored:  withLogging(NewRemoteScored(gateway, logger), ModeRemoteScored, logger, a.obs),
	}
	return a
}

// Engine exposes a configured variant, mainly for engagement feedback
// routing.
func (a *Assembler) Engine(mode Mode) (Engine, bool) {
	e, ok := a.engines[mode]
	return e, ok
}

// BuildFeed fetches candidates, ranks them and truncates to the requested
// limit. The only error source is the candidate fetch; ranking itself
// degrades, never fails.
func (a *Assembler) BuildFeed(ctx context.Context, viewerID, scope string, opts FeedOptions) ([]model.RankedItem, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = a.defaultLimit
	}
	mode := opts.Mode
	if mode == "" {
		mode = a.defaultMode
	}

	// Over-fetch so the hybrid tail has material beyond the head.
	candidates, err := a.store.FetchCandidates(ctx, scope, opts.Cursor, limit*2)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates for %q: %w", scope, err)
	}
	if len(candidates) == 0 {
		return []model.RankedItem{}, nil
	}

	req := model.RankingRequest{
		ViewerID:   viewerID,
		Candidates: candidates,
		Limit:      limit,
		Profile:    opts.Profile,
		Config:     opts.Config,
	}

	if mode == ModeHybrid {
		return a.buildHybrid(ctx, req)
	}

	engine, ok := a.engines[mode]
	if !ok {
		engine = a.engines[a.defaultMode]
	}
	return model.Truncate(engine.ScoreCandidates(ctx, req), limit), nil
}

// buildHybrid serves a remote-scored head with a chronological tail appended
// after it. Tail scores are rebased under the head's minimum so the merged
// feed stays in non-increasing score order.
func (a *Assembler) buildHybrid(ctx context.Context, req model.RankingRequest) ([]model.RankedItem, error) {
	headLimit := int(float64(req.Limit) * a.headShare)
	if headLimit < 1 {
		headLimit = 1
	}

	headReq := req
	headReq.Limit = headLimit

	var head, tail []model.RankedItem
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		head = a.engines[ModeRemoteScored].ScoreCandidates(gCtx, headReq)
		return nil
	})
	g.Go(func() error {
		tail = a.engines[ModeChronological].ScoreCandidates(gCtx, req)
		return nil
	})
	// Engines cannot fail; the group exists for the shared context and the
	// concurrent scoring passes.
	_ = g.Wait()

	seen := make(map[string]struct{}, len(head))
	for _, it := range head {
		seen[it.CandidateID] = struct{}{}
	}

	floor := 0.0
	if len(head) > 0 {
		floor = head[len(head)-1].Score
	}

	merged := make([]model.RankedItem, 0, req.Limit)
	merged = append(merged, head...)
	step := 1
	for _, it := range tail {
		if len(merged) >= req.Limit {
			break
		}
		if _, dup := seen[it.CandidateID]; dup {
			continue
		}
		it.Score = floor - 0.001*float64(step)
		it.Reasons = append(it.Reasons, "chronological_tail")
		merged = append(merged, it)
		step++
	}
	return merged, nil
}

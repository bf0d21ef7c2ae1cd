// Package overdrive is the gateway to the remote ranking oracle. One
// attempt per call, a hard timeout, and a circuit breaker: when the oracle
// misbehaves the caller needs the error now, not after a retry budget.
package overdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// DefaultTimeout leaves the feed request headroom for local processing; the
// end-to-end budget belongs to the caller.
const DefaultTimeout = 75 * time.Millisecond

const rankPath = "/v1/rank-for-you"

type rankRequest struct {
	ViewerID     string   `json:"viewer_id"`
	CandidateIDs []string `json:"candidate_ids"`
	Limit        int      `json:"limit"`
}

type rankResponse struct {
	Items []rankItem `json:"items"`
}

type rankItem struct {
	CandidateID string             `json:"candidate_id"`
	Score       float64            `json:"score"`
	Factors     map[string]float64 `json:"factors"`
	Reasons     []string           `json:"reasons"`
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "overdrive",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("RANKING_CIRCUIT_STATE", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// RankForYou performs the single ranking attempt. Every failure is a typed
// *model.GatewayError; the kinds differ only for operability, the caller
// treats them identically.
func (c *Client) RankForYou(ctx context.Context, viewerID string, candidateIDs []string, limit int) ([]model.RankedItem, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.call(ctx, viewerID, candidateIDs, limit)
	})
	if err != nil {
		var gwErr *model.GatewayError
		if errors.As(err, &gwErr) {
			c.logger.Warn("RANKING_GATEWAY_ERROR", "kind", string(gwErr.Kind), "err", err)
			return nil, err
		}
		// Breaker open or half-open quota spent: the channel could not even
		// be attempted.
		c.logger.Warn("RANKING_GATEWAY_ERROR", "kind", string(model.GatewayUnavailable), "err", err)
		return nil, model.NewGatewayError(model.GatewayUnavailable, err)
	}
	return res.([]model.RankedItem), nil
}

func (c *Client) call(ctx context.Context, viewerID string, candidateIDs []string, limit int) ([]model.RankedItem, error) {
	body, err := json.Marshal(rankRequest{
		ViewerID:     viewerID,
		CandidateIDs: candidateIDs,
		Limit:        limit,
	})
	if err != nil {
		return nil, model.NewGatewayError(model.GatewayUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+rankPath, bytes.NewReader(body))
	if err != nil {
		return nil, model.NewGatewayError(model.GatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, model.NewGatewayError(model.GatewayTimeout, err)
		}
		return nil, model.NewGatewayError(model.GatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, model.NewGatewayError(model.GatewayRejected,
			fmt.Errorf("remote status %d", resp.StatusCode))
	}

	var decoded rankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, model.NewGatewayError(model.GatewayRejected, err)
	}

	items := make([]model.RankedItem, 0, len(decoded.Items))
	for _, it := range decoded.Items {
		items = append(items, model.RankedItem{
			CandidateID: it.CandidateID,
			Score:       it.Score,
			Factors:     sortedFactors(it.Factors),
			Reasons:     it.Reasons,
		})
	}
	return items, nil
}

// sortedFactors flattens the wire map into a deterministic ordered list.
func sortedFactors(m map[string]float64) []model.Factor {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.Factor, 0, len(names))
	for _, name := range names {
		out = append(out, model.Factor{Name: name, Value: m[name]})
	}
	return out
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Package feedapi serves the ranked-feed read API.
package feedapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
	"github.com/sonet/feed-realtime-service/internal/ranking"
)

type FeedHandler struct {
	assembler *ranking.Assembler
	logger    *slog.Logger
}

func NewFeedHandler(assembler *ranking.Assembler, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{assembler: assembler, logger: logger}
}

type feedResponse struct {
	Items      []model.RankedItem `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles GET /v1/feed. Query parameters: viewer_id (required),
// scope (default "home"), limit, mode (chronological|remote|hybrid), cursor.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	viewerID := q.Get("viewer_id")
	if viewerID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "viewer_id is required"})
		return
	}

	scope := q.Get("scope")
	if scope == "" {
		scope = "home"
	}

	opts := ranking.FeedOptions{Cursor: q.Get("cursor")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer in [1, 100]"})
			return
		}
		opts.Limit = limit
	}
	switch mode := q.Get("mode"); mode {
	case "":
	case "chronological", "remote", "hybrid":
		opts.Mode = ranking.Mode(mode)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown mode " + strconv.Quote(mode)})
		return
	}

	items, err := h.assembler.BuildFeed(r.Context(), viewerID, scope, opts)
	if err != nil {
		h.logger.Error("FEED_BUILD_FAILED", "viewer_id", viewerID, "scope", scope, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "feed unavailable"})
		return
	}

	resp := feedResponse{Items: items}
	if len(items) > 0 {
		resp.NextCursor = items[len(items)-1].CandidateID
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps      LeaderboardDependencies
	maxWindow int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxWindow int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:      deps,
		maxWindow: maxWindow,
	}
}

// HandleGetRange handles GET /leaderboard?start=S&end=E. Missing bounds read
// as 0 and are therefore rejected.
func (h *LeaderboardHandler) HandleGetRange(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_range"

	q := r.URL.Query()
	start, errStart := queryInt(q.Get("start"))
	end, errEnd := queryInt(q.Get("end"))
	if errStart != nil || errEnd != nil || start < 1 || end < start {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errRankRange))
		return
	}
	if end-start+1 > h.maxWindow {
		writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrBadRequest,
			fmt.Errorf("at most %d ranks per request", h.maxWindow)))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.RankRange(r.Context(), start, end))
}

// HandleGetNeighborhood handles GET /leaderboard/{customerId}?high=H&low=L.
func (h *LeaderboardHandler) HandleGetNeighborhood(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_neighborhood"

	id, err := parseCustomerID(r.PathValue("customerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	q := r.URL.Query()
	high, errHigh := queryInt(q.Get("high"))
	low, errLow := queryInt(q.Get("low"))
	if errHigh != nil || errLow != nil || high < 0 || low < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errHighLow))
		return
	}
	// high+low+1 > maxWindow, written so large values cannot overflow.
	if high > h.maxWindow-1 || low > h.maxWindow-1-high {
		writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrBadRequest,
			fmt.Errorf("at most %d ranks per request", h.maxWindow)))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Neighborhood(r.Context(), id, high, low))
}

// HandleRebuild handles POST /leaderboard/rebuild.
func (h *LeaderboardHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Rebuild(r.Context()))
}

// queryInt parses an optional integer query value; empty reads as 0.
func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return n, nil
}

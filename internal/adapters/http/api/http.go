// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/rankboard/internal/domain/model"
	"github.com/okian/rankboard/internal/domain/scoring"
	"github.com/okian/rankboard/internal/domain/types"
)

// Defaults applied when NewServer receives a non-positive limit.
const (
	DefaultMaxWindow    = 1000
	DefaultMaxBatchSize = 1000
)

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// ScoreDependencies defines the write operations used by score handlers.
type ScoreDependencies interface {
	UpdateScore(ctx context.Context, customerID int64, delta scoring.Score, key string) (scoring.Score, error)
	EnqueueBatch(ctx context.Context, updates []model.ScoreUpdate) (int, error)
}

// LeaderboardDependencies defines the read and rebuild operations used by
// leaderboard handlers.
type LeaderboardDependencies interface {
	RankRange(ctx context.Context, start, end int) []Entry
	Neighborhood(ctx context.Context, customerID int64, high, low int) []Entry
	Rebuild(ctx context.Context) types.RebuildResult
}

// CustomerDependencies defines the single-customer lookup.
type CustomerDependencies interface {
	Customer(ctx context.Context, customerID int64) (Entry, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreDependencies
	LeaderboardDependencies
	CustomerDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoreHandler       *ScoreHandler
	leaderboardHandler *LeaderboardHandler
	customerHandler    *CustomerHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxWindow, maxBatch int) *Server {
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		scoreHandler:       NewScoreHandler(deps, maxBatch),
		leaderboardHandler: NewLeaderboardHandler(deps, maxWindow),
		customerHandler:    NewCustomerHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /customer/{customerId}/score/{score}",
		MetricsMiddleware(s.scoreHandler.HandleUpdateScore, "update_score"))
	mux.HandleFunc("POST /scores/batch", MetricsMiddleware(s.scoreHandler.HandleBatch, "batch"))
	mux.HandleFunc("GET /customer/{customerId}", MetricsMiddleware(s.customerHandler.HandleGetCustomer, "customer"))

	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetRange, "leaderboard"))
	mux.HandleFunc("GET /leaderboard/{customerId}",
		MetricsMiddleware(s.leaderboardHandler.HandleGetNeighborhood, "neighborhood"))
	mux.HandleFunc("POST /leaderboard/rebuild", MetricsMiddleware(s.leaderboardHandler.HandleRebuild, "rebuild"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

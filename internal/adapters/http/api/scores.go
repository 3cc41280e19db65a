package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/rankboard/internal/adapters/mq/queue"
	"github.com/okian/rankboard/internal/adapters/repository"
	"github.com/okian/rankboard/internal/domain/dedupe"
	"github.com/okian/rankboard/internal/domain/model"
	"github.com/okian/rankboard/internal/domain/scoring"
)

// IdempotencyKeyHeader carries the optional per-request idempotency key.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxBatchBodyBytes = 4 << 20

// ScoreHandler handles score update requests.
type ScoreHandler struct {
	deps     ScoreDependencies
	maxBatch int
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies, maxBatch int) *ScoreHandler {
	return &ScoreHandler{deps: deps, maxBatch: maxBatch}
}

// HandleUpdateScore handles POST /customer/{customerId}/score/{score}.
// The response body is the resulting score as a JSON number.
func (h *ScoreHandler) HandleUpdateScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_score"

	delta, err := parseDelta(r.PathValue("score"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := parseCustomerID(r.PathValue("customerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > dedupe.MaxKeyLength {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errIdempotency))
		return
	}

	score, err := h.deps.UpdateScore(r.Context(), id, delta, key)
	if err != nil {
		status, code, apiErr := classifyUpdateError(op, err)
		writeError(w, status, code, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, json.Number(score.String()))
}

type batchItem struct {
	CustomerID     int64       `json:"customerId"`
	Delta          json.Number `json:"delta"`
	IdempotencyKey string      `json:"idempotencyKey,omitempty"`
}

type batchRequest struct {
	Updates []batchItem `json:"updates"`
}

type batchResponse struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

type batchErrorResponse struct {
	errorResponse
	Accepted int `json:"accepted"`
}

// HandleBatch handles POST /scores/batch. Updates are validated up front and
// queued in order; a full queue stops the batch and the response reports how
// many were accepted before it.
func (h *ScoreHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.batch"

	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errInvalidBody))
		return
	}
	if len(req.Updates) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errEmptyBatch))
		return
	}
	if len(req.Updates) > h.maxBatch {
		writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrBadRequest,
			fmt.Errorf("at most %d updates per batch", h.maxBatch)))
		return
	}

	now := time.Now()
	updates := make([]model.ScoreUpdate, len(req.Updates))
	for i, item := range req.Updates {
		u, err := item.toUpdate(now)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("updates[%d]: %w", i, err)))
			return
		}
		updates[i] = u
	}

	accepted, err := h.deps.EnqueueBatch(r.Context(), updates)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, batchResponse{Status: "accepted", Accepted: accepted})
	case errors.Is(err, queue.ErrQueueFull):
		writeJSON(w, http.StatusTooManyRequests, batchErrorResponse{
			errorResponse: errorResponse{Code: "backpressure", Message: WrapKind(op, ErrBackpressure, err).Error()},
			Accepted:      accepted,
		})
	default:
		writeJSON(w, http.StatusServiceUnavailable, batchErrorResponse{
			errorResponse: errorResponse{Code: "unavailable", Message: WrapKind(op, ErrUnavailable, err).Error()},
			Accepted:      accepted,
		})
	}
}

func (b batchItem) toUpdate(now time.Time) (model.ScoreUpdate, error) {
	delta, err := parseDelta(b.Delta.String())
	if err != nil {
		return model.ScoreUpdate{}, err
	}
	if b.CustomerID <= 0 {
		return model.ScoreUpdate{}, errCustomerID
	}
	if len(b.IdempotencyKey) > dedupe.MaxKeyLength {
		return model.ScoreUpdate{}, errIdempotency
	}
	return model.ScoreUpdate{
		CustomerID:     b.CustomerID,
		Delta:          delta,
		IdempotencyKey: b.IdempotencyKey,
		ReceivedAt:     now,
	}, nil
}

// parseDelta accepts any decimal literal within the delta bounds. Anything
// else maps to the score range message.
func parseDelta(raw string) (scoring.Score, error) {
	delta, err := scoring.Parse(raw)
	if err != nil {
		return scoring.Floor, errScoreRange
	}
	if scoring.ValidateDelta(delta) != nil {
		return scoring.Floor, errScoreRange
	}
	return delta, nil
}

func parseCustomerID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errCustomerID
	}
	return id, nil
}

func classifyUpdateError(op string, err error) (int, string, error) {
	switch {
	case errors.Is(err, scoring.ErrDeltaOutOfRange), errors.Is(err, scoring.ErrInvalidScore):
		return http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errScoreRange)
	case errors.Is(err, repository.ErrInvalidCustomerID):
		return http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errCustomerID)
	case errors.Is(err, dedupe.ErrKeyTooLong):
		return http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errIdempotency)
	default:
		return http.StatusInternalServerError, "internal_error", Wrap(op, err)
	}
}

// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/rankboard/internal/domain/scoring"
)

// ScoreUpdate is a score delta accepted for asynchronous application.
type ScoreUpdate struct {
	CustomerID     int64         // caller-assigned customer identifier
	Delta          scoring.Score // validated delta, already within bounds
	IdempotencyKey string        // optional; empty means apply unconditionally
	ReceivedAt     time.Time     // when the request layer accepted it
}

// Package types contains common types used across the application
package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Entry represents a leaderboard entry
type Entry struct {
	CustomerID int64           `json:"customerId"`
	Score      decimal.Decimal `json:"score"`
	Rank       int             `json:"rank"`
}

// wireEntry renders the score as a bare JSON number.
type wireEntry struct {
	CustomerID int64       `json:"customerId"`
	Score      json.Number `json:"score"`
	Rank       int         `json:"rank"`
}

// MarshalJSON encodes the score as a number rather than a quoted string.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{
		CustomerID: e.CustomerID,
		Score:      json.Number(e.Score.String()),
		Rank:       e.Rank,
	})
}

// RebuildResult reports the outcome of an on-demand snapshot rebuild.
type RebuildResult struct {
	Rebuilt    bool   `json:"rebuilt"`
	Generation uint64 `json:"generation"`
	Ranked     int    `json:"ranked"`
}

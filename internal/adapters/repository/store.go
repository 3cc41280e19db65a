// Package repository holds the in-memory ranking engine: the concurrent score
// store, the snapshot builder and the read queries over published snapshots.
package repository

import (
	"context"

	"github.com/okian/rankboard/internal/domain/scoring"
)

// Entry is one leaderboard row.
type Entry struct {
	CustomerID int64
	Score      scoring.Score
	Rank       int
}

// Store provides read/write access to the ranking state.
type Store interface {
	// ApplyDelta adds delta to the customer's score, creating the customer on
	// first write, and returns the resulting score. Scores never drop below
	// scoring.Floor.
	ApplyDelta(ctx context.Context, customerID int64, delta scoring.Score) (scoring.Score, error)

	// RankRange returns the entries ranked start..end (1-based, inclusive)
	// in the current snapshot. Out-of-range windows yield an empty slice.
	RankRange(ctx context.Context, start, end int) []Entry

	// Neighborhood returns up to high entries above the customer, the
	// customer, and up to low entries below, best first. Unknown or
	// unranked customers yield an empty slice.
	Neighborhood(ctx context.Context, customerID int64, high, low int) []Entry

	// Lookup returns the live score and last assigned rank of a customer.
	// Returns ErrNotFound if the customer is unknown.
	Lookup(ctx context.Context, customerID int64) (Entry, error)

	// Rebuild publishes a new snapshot if the store changed and no other
	// rebuild is running. Reports whether a snapshot was published.
	Rebuild(ctx context.Context) bool

	// Snapshot returns the currently published snapshot.
	Snapshot() *Snapshot

	// Count returns the number of customers known to the store.
	Count(ctx context.Context) int
}

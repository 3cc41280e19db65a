package repository

import (
	"sync/atomic"

	"github.com/okian/rankboard/internal/domain/scoring"
)

// customer is the mutable record owned by the store. Snapshots hold
// pointers to it but only ever read it.
//
// score is written by ApplyDelta alone. rank is written by Rebuild, and by
// ApplyDelta when it zeroes the rank of a customer that hit the floor.
type customer struct {
	id    int64
	score atomic.Int64
	rank  atomic.Int64 // 0 means unranked
}

func newCustomer(id int64) *customer {
	return &customer{id: id}
}

func (c *customer) loadScore() scoring.Score {
	return scoring.Score(c.score.Load())
}

// add applies delta under the floor policy and returns the new score.
func (c *customer) add(delta scoring.Score) scoring.Score {
	for {
		old := c.score.Load()
		next := scoring.Apply(scoring.Score(old), delta)
		if c.score.CompareAndSwap(old, int64(next)) {
			return next
		}
	}
}

func (c *customer) entry() Entry {
	return Entry{
		CustomerID: c.id,
		Score:      c.loadScore(),
		Rank:       int(c.rank.Load()),
	}
}

package repository

import (
	"time"

	"github.com/okian/rankboard/internal/domain/scoring"
)

// slot pairs a record with the score it had when the snapshot was built.
type slot struct {
	rec   *customer
	score scoring.Score
}

// Snapshot is an immutable ranked view of the store. Index i holds rank i+1.
type Snapshot struct {
	slots      []slot
	generation uint64
	builtAt    time.Time
}

var emptySnapshot = &Snapshot{}

// Len returns the number of ranked customers.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slots)
}

// Generation increases by one with every published snapshot.
func (s *Snapshot) Generation() uint64 {
	if s == nil {
		return 0
	}
	return s.generation
}

// BuiltAt is zero for the initial empty snapshot.
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}

// at renders index i with the values captured at build time.
func (s *Snapshot) at(i int) Entry {
	sl := s.slots[i]
	return Entry{CustomerID: sl.rec.id, Score: sl.score, Rank: i + 1}
}

func (s *Snapshot) appendRange(out []Entry, from, to int) []Entry {
	for i := from; i < to; i++ {
		out = append(out, s.at(i))
	}
	return out
}

package repository

import (
	"cmp"
	"slices"

	"github.com/okian/rankboard/internal/domain/scoring"
)

// ranksBefore reports whether (aScore, aID) appears before (bScore, bID):
// score descending, then id ascending. Ids are unique so the order is total.
func ranksBefore(aScore scoring.Score, aID int64, bScore scoring.Score, bID int64) bool {
	return compareRank(aScore, aID, bScore, bID) < 0
}

func compareRank(aScore scoring.Score, aID int64, bScore scoring.Score, bID int64) int {
	if aScore != bScore {
		return cmp.Compare(bScore, aScore) // higher score ranks earlier
	}
	return cmp.Compare(aID, bID) // tie-breaker by id asc
}

// sortSlots orders slots by their captured scores.
func sortSlots(slots []slot) {
	slices.SortFunc(slots, func(a, b slot) int {
		return compareRank(a.score, a.rec.id, b.score, b.rec.id)
	})
}

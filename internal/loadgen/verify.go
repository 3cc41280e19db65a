package loadgen

import (
	"errors"
	"fmt"
)

// Verification failures.
var (
	ErrOrdering  = errors.New("leaderboard out of order")
	ErrDensity   = errors.New("leaderboard ranks not dense")
	ErrFloor     = errors.New("floor score listed")
	ErrDuplicate = errors.New("customer listed twice")
)

// Verify checks a window that starts at rank start: scores never increase,
// ties are broken by ascending customer id, ranks run start, start+1, ...
// without gaps, no customer appears twice and nobody at the floor is listed.
func Verify(entries []Entry, start int) error {
	seen := make(map[int64]struct{}, len(entries))
	var errs []error
	for i, e := range entries {
		if want := start + i; e.Rank != want {
			errs = append(errs, fmt.Errorf("%w: position %d has rank %d, want %d", ErrDensity, i, e.Rank, want))
		}
		if !e.Score.IsPositive() {
			errs = append(errs, fmt.Errorf("%w: customer %d", ErrFloor, e.CustomerID))
		}
		if _, dup := seen[e.CustomerID]; dup {
			errs = append(errs, fmt.Errorf("%w: customer %d", ErrDuplicate, e.CustomerID))
		}
		seen[e.CustomerID] = struct{}{}

		if i == 0 {
			continue
		}
		prev := entries[i-1]
		switch c := prev.Score.Cmp(e.Score); {
		case c < 0:
			errs = append(errs, fmt.Errorf("%w: rank %d (%s) below rank %d (%s)",
				ErrOrdering, prev.Rank, prev.Score, e.Rank, e.Score))
		case c == 0 && prev.CustomerID > e.CustomerID:
			errs = append(errs, fmt.Errorf("%w: tie at %s not broken by id (%d before %d)",
				ErrOrdering, e.Score, prev.CustomerID, e.CustomerID))
		}
	}
	return errors.Join(errs...)
}

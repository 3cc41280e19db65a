package loadgen

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/rankboard/internal/domain/scoring"
)

// Generate returns cfg.Updates random updates. Deltas are drawn uniformly
// from the accepted range with two decimal places and lean positive so the
// board fills up; every update carries a fresh idempotency key.
func Generate(cfg Config, rng *rand.Rand) []Update {
	out := make([]Update, cfg.Updates)
	for i := range out {
		// [-250.00, 1000.00] in hundredths.
		cents := rng.Int64N(125_001) - 25_000
		delta := decimal.New(cents, -2)
		if s, err := scoring.FromDecimal(delta); err != nil || scoring.ValidateDelta(s) != nil {
			delta = decimal.Zero
		}
		out[i] = Update{
			CustomerID:     rng.Int64N(int64(cfg.Customers)) + 1,
			Delta:          delta.String(),
			IdempotencyKey: uuid.NewString(),
		}
	}
	return out
}

// Batches splits updates into consecutive chunks of at most size.
func Batches(updates []Update, size int) [][]Update {
	if size <= 0 {
		size = 1
	}
	out := make([][]Update, 0, (len(updates)+size-1)/size)
	for len(updates) > 0 {
		n := min(size, len(updates))
		out = append(out, updates[:n])
		updates = updates[n:]
	}
	return out
}

// Package scoring defines the fixed-point score type and the arithmetic
// policy applied to every score update.
package scoring

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional decimal digits a Score keeps.
const Places = 6

// scale is 10^Places.
const scale = 1_000_000

// Floor is the lowest score a customer can hold. A customer at the floor is
// not ranked.
const Floor Score = 0

// Delta bounds accepted at the request boundary.
var (
	MinDelta = FromInt(-1000)
	MaxDelta = FromInt(1000)
)

var (
	maxScoreDecimal = decimal.NewFromInt(math.MaxInt64)
	minScoreDecimal = decimal.NewFromInt(math.MinInt64)
)

// Score is a signed fixed-point value with Places fractional digits.
// One unit is 10^-Places.
type Score int64

// FromInt converts a whole number into a Score, saturating on overflow.
func FromInt(n int64) Score {
	if n > math.MaxInt64/scale {
		return Score(math.MaxInt64)
	}
	if n < math.MinInt64/scale {
		return Score(math.MinInt64)
	}
	return Score(n * scale)
}

// FromDecimal converts d into a Score. Digits beyond Places are rounded half
// away from zero. Values that do not fit in the fixed-point range are
// rejected with ErrInvalidScore.
func FromDecimal(d decimal.Decimal) (Score, error) {
	units := d.Shift(Places).Round(0)
	if units.GreaterThan(maxScoreDecimal) || units.LessThan(minScoreDecimal) {
		return 0, fmt.Errorf("%w: %s overflows fixed-point range", ErrInvalidScore, d.String())
	}
	return Score(units.IntPart()), nil
}

// Parse parses a decimal string such as "12.5" or "-3" into a Score.
func Parse(s string) (Score, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScore, s)
	}
	return FromDecimal(d)
}

// Decimal returns the exact decimal value of s.
func (s Score) Decimal() decimal.Decimal {
	return decimal.New(int64(s), -Places)
}

// Float64 returns an approximation of s, used for metrics.
func (s Score) Float64() float64 {
	return float64(s) / scale
}

// String renders s without trailing zeros.
func (s Score) String() string {
	return s.Decimal().String()
}

// Ranked reports whether s is above the floor.
func (s Score) Ranked() bool {
	return s > Floor
}

// Apply returns max(Floor, cur+delta). The sum saturates instead of wrapping
// so no update can overflow into a negative or tiny score.
func Apply(cur, delta Score) Score {
	sum := addSaturating(cur, delta)
	if sum < Floor {
		return Floor
	}
	return sum
}

// ValidateDelta checks that delta lies within [MinDelta, MaxDelta].
func ValidateDelta(delta Score) error {
	if delta < MinDelta || delta > MaxDelta {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrDeltaOutOfRange, delta, MinDelta, MaxDelta)
	}
	return nil
}

// addSaturating adds a and b, clamping to the int64 range.
func addSaturating(a, b Score) Score {
	sum := a + b
	if b > 0 && sum < a {
		return Score(math.MaxInt64)
	}
	if b < 0 && sum > a {
		return Score(math.MinInt64)
	}
	return sum
}

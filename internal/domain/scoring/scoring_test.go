package scoring_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/rankboard/internal/domain/scoring"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Given decimal score strings", t, func() {
		Convey("When parsing a whole number", func() {
			s, err := scoring.Parse("100")

			Convey("Then it should scale to fixed-point units", func() {
				So(err, ShouldBeNil)
				So(s, ShouldEqual, scoring.FromInt(100))
				So(s.String(), ShouldEqual, "100")
			})
		})

		Convey("When parsing a fractional value", func() {
			s, err := scoring.Parse("100.5")

			Convey("Then it should keep the fraction exactly", func() {
				So(err, ShouldBeNil)
				So(int64(s), ShouldEqual, 100_500_000)
				So(s.Decimal().Equal(decimal.RequireFromString("100.5")), ShouldBeTrue)
			})
		})

		Convey("When parsing more digits than the score keeps", func() {
			up, err1 := scoring.Parse("0.0000005")
			down, err2 := scoring.Parse("-0.0000005")

			Convey("Then it should round half away from zero", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(int64(up), ShouldEqual, 1)
				So(int64(down), ShouldEqual, -1)
			})
		})

		Convey("When parsing garbage", func() {
			_, err := scoring.Parse("ten")

			Convey("Then it should return ErrInvalidScore", func() {
				So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)
			})
		})

		Convey("When parsing a value beyond the fixed-point range", func() {
			_, err := scoring.Parse("1e30")

			Convey("Then it should return ErrInvalidScore", func() {
				So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)
			})
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given the floor policy", t, func() {
		Convey("When adding a positive delta", func() {
			So(scoring.Apply(scoring.FromInt(10), scoring.FromInt(5)), ShouldEqual, scoring.FromInt(15))
		})

		Convey("When the result would go negative", func() {
			So(scoring.Apply(scoring.FromInt(10), scoring.FromInt(-50)), ShouldEqual, scoring.Floor)
		})

		Convey("When the delta is zero", func() {
			So(scoring.Apply(scoring.FromInt(7), 0), ShouldEqual, scoring.FromInt(7))
			So(scoring.Apply(scoring.Floor, 0), ShouldEqual, scoring.Floor)
		})

		Convey("When the sum overflows", func() {
			got := scoring.Apply(scoring.Score(math.MaxInt64-1), scoring.FromInt(1000))

			Convey("Then it should saturate instead of wrapping", func() {
				So(got, ShouldEqual, scoring.Score(math.MaxInt64))
			})
		})

		Convey("When a huge negative delta underflows", func() {
			got := scoring.Apply(scoring.Score(math.MinInt64+10), scoring.Score(math.MinInt64))

			Convey("Then it should clamp to the floor", func() {
				So(got, ShouldEqual, scoring.Floor)
			})
		})
	})
}

func TestValidateDelta(t *testing.T) {
	Convey("Given delta bounds of [-1000, 1000]", t, func() {
		So(scoring.ValidateDelta(scoring.FromInt(1000)), ShouldBeNil)
		So(scoring.ValidateDelta(scoring.FromInt(-1000)), ShouldBeNil)
		So(scoring.ValidateDelta(0), ShouldBeNil)

		over, _ := scoring.Parse("1000.000001")
		So(errors.Is(scoring.ValidateDelta(over), scoring.ErrDeltaOutOfRange), ShouldBeTrue)
		So(errors.Is(scoring.ValidateDelta(scoring.FromInt(-1001)), scoring.ErrDeltaOutOfRange), ShouldBeTrue)
	})
}

func TestRanked(t *testing.T) {
	Convey("Given scores around the floor", t, func() {
		So(scoring.Floor.Ranked(), ShouldBeFalse)
		So(scoring.Score(1).Ranked(), ShouldBeTrue)
		So(scoring.FromInt(3).Float64(), ShouldEqual, 3.0)
	})
}

package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/rankboard/internal/domain/types"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry_JSON(t *testing.T) {
	Convey("Given an Entry with a fractional score", t, func() {
		entry := types.Entry{
			CustomerID: 42,
			Score:      decimal.RequireFromString("100.5"),
			Rank:       3,
		}

		Convey("When encoding it", func() {
			b, err := json.Marshal(entry)

			Convey("Then the score should be a bare number", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"customerId":42,"score":100.5,"rank":3}`)
			})

			Convey("And it should decode back to the same value", func() {
				var out types.Entry
				So(json.Unmarshal(b, &out), ShouldBeNil)
				So(out.CustomerID, ShouldEqual, 42)
				So(out.Rank, ShouldEqual, 3)
				So(out.Score.Equal(entry.Score), ShouldBeTrue)
			})
		})

		Convey("When encoding a list of entries", func() {
			b, err := json.Marshal([]types.Entry{entry, {CustomerID: 7, Score: decimal.NewFromInt(9), Rank: 4}})

			Convey("Then every element should use the wire shape", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `[{"customerId":42,"score":100.5,"rank":3},{"customerId":7,"score":9,"rank":4}]`)
			})
		})
	})
}

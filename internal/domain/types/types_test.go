package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/pulse/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDay(t *testing.T) {
	Convey("Given the Day calendar type", t, func() {
		Convey("When bucketing timestamps into days", func() {
			Convey("Then any instant of a UTC day maps to the same day", func() {
				morning := time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC)
				night := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
				So(types.DayOf(morning).Equal(types.DayOf(night)), ShouldBeTrue)
				So(types.DayOf(morning).String(), ShouldEqual, "2026-03-15")
			})

			Convey("Then non-UTC timestamps are normalized first", func() {
				loc := time.FixedZone("UTC+9", 9*60*60)
				// 2026-03-16 02:00 +09:00 is still 2026-03-15 in UTC
				ts := time.Date(2026, 3, 16, 2, 0, 0, 0, loc)
				So(types.DayOf(ts).String(), ShouldEqual, "2026-03-15")
			})
		})

		Convey("When parsing day keys", func() {
			Convey("Then a valid key round-trips", func() {
				d, err := types.ParseDay("2026-01-31")
				So(err, ShouldBeNil)
				So(d.String(), ShouldEqual, "2026-01-31")
			})

			Convey("Then a malformed key errors", func() {
				_, err := types.ParseDay("31/01/2026")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When doing day arithmetic", func() {
			d := types.MustDay("2026-02-28")

			Convey("Then AddDays crosses month boundaries", func() {
				So(d.AddDays(1).String(), ShouldEqual, "2026-03-01")
				So(d.AddDays(-28).String(), ShouldEqual, "2026-01-31")
			})

			Convey("Then Next is AddDays(1)", func() {
				So(d.Next().Equal(d.AddDays(1)), ShouldBeTrue)
			})

			Convey("Then DaysSince counts whole days with sign", func() {
				So(d.DaysSince(types.MustDay("2026-02-21")), ShouldEqual, 7)
				So(types.MustDay("2026-02-21").DaysSince(d), ShouldEqual, -7)
				So(d.DaysSince(d), ShouldEqual, 0)
			})

			Convey("Then ordering comparisons agree", func() {
				later := d.Next()
				So(d.Before(later), ShouldBeTrue)
				So(later.After(d), ShouldBeTrue)
				So(d.Equal(later), ShouldBeFalse)
			})
		})

		Convey("When listing trailing windows", func() {
			d := types.MustDay("2026-03-10")
			days := d.LastN(3)

			Convey("Then days run from today backwards", func() {
				So(len(days), ShouldEqual, 3)
				So(days[0].String(), ShouldEqual, "2026-03-10")
				So(days[1].String(), ShouldEqual, "2026-03-09")
				So(days[2].String(), ShouldEqual, "2026-03-08")
			})
		})

		Convey("When persisting through database interfaces", func() {
			d := types.MustDay("2026-07-04")

			Convey("Then Value emits the day key", func() {
				v, err := d.Value()
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "2026-07-04")
			})

			Convey("Then Scan accepts strings, bytes and times", func() {
				var got types.Day
				So(got.Scan("2026-07-04"), ShouldBeNil)
				So(got.Equal(d), ShouldBeTrue)

				So(got.Scan([]byte("2026-07-05")), ShouldBeNil)
				So(got.String(), ShouldEqual, "2026-07-05")

				So(got.Scan(time.Date(2026, 7, 6, 13, 0, 0, 0, time.UTC)), ShouldBeNil)
				So(got.String(), ShouldEqual, "2026-07-06")

				So(got.Scan(nil), ShouldBeNil)
				So(got.IsZero(), ShouldBeTrue)
			})

			Convey("Then Scan rejects unsupported types", func() {
				var got types.Day
				So(got.Scan(42), ShouldNotBeNil)
			})
		})

		Convey("When marshaling to JSON", func() {
			d := types.MustDay("2026-12-25")

			Convey("Then it serializes as the day key", func() {
				b, err := json.Marshal(d)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `"2026-12-25"`)

				var back types.Day
				So(json.Unmarshal(b, &back), ShouldBeNil)
				So(back.Equal(d), ShouldBeTrue)
			})
		})
	})
}

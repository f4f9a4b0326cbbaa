package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/pulse/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRingDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		Convey("When creating with default options", func() {
			d := dedupe.New()

			Convey("Then it starts empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording IDs", func() {
			d := dedupe.New()

			Convey("And the ID is new", func() {
				seen := d.SeenAndRecord(ctx, "event-1")

				Convey("Then it reports unseen and records it", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the ID was already recorded", func() {
				d.SeenAndRecord(ctx, "event-1")
				seen := d.SeenAndRecord(ctx, "event-1")

				Convey("Then it reports seen without growing", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording an ID", func() {
			d := dedupe.New()
			d.SeenAndRecord(ctx, "event-1")
			d.Unrecord(ctx, "event-1")

			Convey("Then a retry of that ID is treated as new", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "event-1"), ShouldBeFalse)
			})
		})

		Convey("When the cache exceeds its bound", func() {
			d := dedupe.New(dedupe.WithMaxSize(3))
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("event-%d", i))
			}

			Convey("Then the oldest IDs are evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "event-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "event-0"), ShouldBeFalse)
			})
		})

		Convey("When eviction is disabled", func() {
			d := dedupe.New(dedupe.WithMaxSize(0))
			for i := 0; i < 100; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("event-%d", i))
			}

			Convey("Then every ID stays recorded", func() {
				So(d.Size(), ShouldEqual, 100)
				So(d.SeenAndRecord(ctx, "event-0"), ShouldBeTrue)
			})
		})

		Convey("When accessed concurrently", func() {
			d := dedupe.New()
			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						d.SeenAndRecord(ctx, fmt.Sprintf("w%d-e%d", w, i))
					}
				}(w)
			}
			wg.Wait()

			Convey("Then every distinct ID is recorded exactly once", func() {
				So(d.Size(), ShouldEqual, 800)
			})
		})
	})
}

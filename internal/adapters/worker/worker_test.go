package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/worker"
	"github.com/okian/pulse/internal/domain/insight"
	"github.com/okian/pulse/internal/domain/mastery"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newRunner(store worker.Store, opts ...worker.Option) *worker.Runner {
	detector := insight.NewDetector(store.TaskPointsByDay)
	base := []worker.Option{worker.WithClock(func() time.Time { return testNow })}
	return worker.NewRunner(store, scoring.New(), mastery.New(), detector, append(base, opts...)...)
}

func taskEvent(id, userID string, ts time.Time, skills []model.SkillRef, difficulty string, minutes int) model.Event {
	return model.Event{
		ID:        id,
		EventID:   id,
		Type:      model.TypeTaskCompleted,
		UserID:    userID,
		Timestamp: ts,
		Payload: model.Payload{
			Skills:          skills,
			Difficulty:      difficulty,
			DurationMinutes: minutes,
		},
	}
}

func TestRunPass(t *testing.T) {
	ctx := context.Background()
	today := types.DayOf(testNow)

	Convey("Given a runner over an in-memory store", t, func() {
		store := repository.NewMemStore()
		r := newRunner(store)

		Convey("When processing a hard task with one skill", func() {
			e := taskEvent("id-1", "u1", testNow, []model.SkillRef{{SkillID: "go", Weight: 1}}, "hard", 30)
			_, err := store.AppendEvent(ctx, e)
			So(err, ShouldBeNil)

			sum, err := r.RunPass(ctx)

			Convey("Then the pass reports one processed event", func() {
				So(err, ShouldBeNil)
				So(sum.Fetched, ShouldEqual, 1)
				So(sum.Processed, ShouldEqual, 1)
				So(sum.Skipped, ShouldEqual, 0)
				So(sum.Failed, ShouldEqual, 0)
				So(sum.Any(), ShouldBeTrue)
			})

			Convey("Then every derived record reflects the event", func() {
				So(err, ShouldBeNil)

				points, err := store.TaskPointsByDay(ctx, "u1", "go", []types.Day{today})
				So(err, ShouldBeNil)
				So(points[today], ShouldEqual, 4)

				masteries, err := store.SkillMasteries(ctx, "u1")
				So(err, ShouldBeNil)
				So(len(masteries), ShouldEqual, 1)
				So(masteries[0].DecayedSum, ShouldEqual, 4)
				So(masteries[0].Mastery, ShouldEqual, 40)
				So(masteries[0].LastActive.Equal(today), ShouldBeTrue)

				daySum, err := store.UserDailySummary(ctx, "u1", today)
				So(err, ShouldBeNil)
				So(daySum.TasksCompleted, ShouldEqual, 1)
				So(daySum.TimeSeconds, ShouldEqual, 1800)

				st, err := store.Streak(ctx, "u1")
				So(err, ShouldBeNil)
				So(st.CurrentStreak, ShouldEqual, 1)
				So(st.LongestStreak, ShouldEqual, 1)
			})

			Convey("Then the event leaves the backlog", func() {
				So(err, ShouldBeNil)
				n, err := store.CountUnprocessed(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When two same-day events contribute to one skill", func() {
			for _, id := range []string{"id-1", "id-2"} {
				_, err := store.AppendEvent(ctx, taskEvent(id, "u1", testNow, []model.SkillRef{{SkillID: "go", Weight: 1}}, "medium", 10))
				So(err, ShouldBeNil)
			}

			sum, err := r.RunPass(ctx)
			So(err, ShouldBeNil)
			So(sum.Processed, ShouldEqual, 2)

			Convey("Then aggregates add while the decay folds", func() {
				points, err := store.TaskPointsByDay(ctx, "u1", "go", []types.Day{today})
				So(err, ShouldBeNil)
				So(points[today], ShouldEqual, 4)

				masteries, err := store.SkillMasteries(ctx, "u1")
				So(err, ShouldBeNil)
				// 2*0.95 + 2
				So(masteries[0].DecayedSum, ShouldAlmostEqual, 3.9, 1e-9)
			})

			Convey("Then the streak counts the day once", func() {
				st, err := store.Streak(ctx, "u1")
				So(err, ShouldBeNil)
				So(st.CurrentStreak, ShouldEqual, 1)
			})
		})

		Convey("When an event carries several weighted skills", func() {
			skills := []model.SkillRef{{SkillID: "go", Weight: 1}, {SkillID: "sql", Weight: 0.5}}
			_, err := store.AppendEvent(ctx, taskEvent("id-1", "u1", testNow, skills, "hard", 60))
			So(err, ShouldBeNil)

			_, err = r.RunPass(ctx)
			So(err, ShouldBeNil)

			Convey("Then each skill gets its weighted share", func() {
				points, err := store.TaskPointsByDay(ctx, "u1", "go", []types.Day{today})
				So(err, ShouldBeNil)
				So(points[today], ShouldEqual, 4)

				points, err = store.TaskPointsByDay(ctx, "u1", "sql", []types.Day{today})
				So(err, ShouldBeNil)
				So(points[today], ShouldEqual, 2)
			})
		})

		Convey("When events span unknown types and empty payloads", func() {
			_, err := store.AppendEvent(ctx, model.Event{ID: "id-1", EventID: "e1", Type: "meeting.attended", UserID: "u1", Timestamp: testNow})
			So(err, ShouldBeNil)
			_, err = store.AppendEvent(ctx, model.Event{ID: "id-2", EventID: "e2", Type: model.TypeTaskCompleted, UserID: "u1", Timestamp: testNow})
			So(err, ShouldBeNil)

			sum, err := r.RunPass(ctx)

			Convey("Then both are skipped with no derived effect", func() {
				So(err, ShouldBeNil)
				So(sum.Skipped, ShouldEqual, 2)
				So(sum.Processed, ShouldEqual, 0)

				n, err := store.CountUnprocessed(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				_, err = store.Streak(ctx, "u1")
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When consecutive-day events arrive in one batch", func() {
			for i, id := range []string{"id-1", "id-2", "id-3"} {
				ts := testNow.AddDate(0, 0, i-2)
				_, err := store.AppendEvent(ctx, taskEvent(id, "u1", ts, []model.SkillRef{{SkillID: "go", Weight: 1}}, "easy", 5))
				So(err, ShouldBeNil)
			}

			_, err := r.RunPass(ctx)
			So(err, ShouldBeNil)

			Convey("Then in-order application extends the streak", func() {
				st, err := store.Streak(ctx, "u1")
				So(err, ShouldBeNil)
				So(st.CurrentStreak, ShouldEqual, 3)
				So(st.LongestStreak, ShouldEqual, 3)
			})
		})

		Convey("When the batch size caps the fetch", func() {
			for _, id := range []string{"id-1", "id-2", "id-3"} {
				_, err := store.AppendEvent(ctx, taskEvent(id, "u1", testNow, []model.SkillRef{{SkillID: "go", Weight: 1}}, "easy", 5))
				So(err, ShouldBeNil)
			}
			small := newRunner(store, worker.WithBatchSize(2))

			sum, err := small.RunPass(ctx)

			Convey("Then the rest waits for the next pass", func() {
				So(err, ShouldBeNil)
				So(sum.Fetched, ShouldEqual, 2)

				n, err := store.CountUnprocessed(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When there is nothing to process", func() {
			sum, err := r.RunPass(ctx)

			Convey("Then the pass is a quiet no-op", func() {
				So(err, ShouldBeNil)
				So(sum.Fetched, ShouldEqual, 0)
				So(sum.Any(), ShouldBeFalse)
			})
		})
	})
}

func TestRunPassDropInsight(t *testing.T) {
	ctx := context.Background()
	today := types.DayOf(testNow)

	Convey("Given a user with a strong previous week and a silent one", t, func() {
		store := repository.NewMemStore()
		r := newRunner(store)

		// Seed 10 points/day across the previous window directly.
		for i := 7; i < 14; i++ {
			day := today.AddDays(-i)
			key := repository.ContributionKey{EventID: "seed-" + day.String(), UserID: "u1", SkillID: "go", Date: day}
			_, err := store.ApplyContribution(ctx, key, func(_ *model.DailyAggregate, _ *model.SkillMastery) (model.DailyAggregate, model.SkillMastery) {
				return model.DailyAggregate{UserID: "u1", SkillID: "go", Date: day, TaskPoints: 10, TasksCompleted: 1},
					model.SkillMastery{UserID: "u1", SkillID: "go", DecayedSum: 1, Mastery: 10, LastActive: day}
			})
			So(err, ShouldBeNil)
		}

		Convey("When a small task arrives after the quiet week", func() {
			_, err := store.AppendEvent(ctx, taskEvent("id-1", "u1", testNow, []model.SkillRef{{SkillID: "go", Weight: 1}}, "easy", 5))
			So(err, ShouldBeNil)

			_, err = r.RunPass(ctx)
			So(err, ShouldBeNil)

			Convey("Then a critical drop insight is recorded", func() {
				insights, err := store.InsightsByUser(ctx, "u1", 10)
				So(err, ShouldBeNil)
				So(len(insights), ShouldEqual, 1)
				So(insights[0].Key, ShouldEqual, model.InsightSkillDrop)
				So(insights[0].Severity, ShouldEqual, model.SeverityCritical)
				So(insights[0].SkillID, ShouldEqual, "go")
			})
		})
	})
}

// flakyStore fails ApplyUserActivity a configured number of times to
// exercise partial-failure retries.
type flakyStore struct {
	*repository.MemStore
	failures int
}

func (f *flakyStore) ApplyUserActivity(ctx context.Context, key repository.ActivityKey, fn repository.ActivityFn) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, errors.New("transient store failure")
	}
	return f.MemStore.ApplyUserActivity(ctx, key, fn)
}

func TestRunPassPartialFailure(t *testing.T) {
	ctx := context.Background()
	today := types.DayOf(testNow)

	Convey("Given a store that fails the user-level update once", t, func() {
		store := &flakyStore{MemStore: repository.NewMemStore(), failures: 1}
		r := newRunner(store)

		_, err := store.AppendEvent(ctx, taskEvent("id-1", "u1", testNow, []model.SkillRef{{SkillID: "go", Weight: 1}}, "hard", 30))
		So(err, ShouldBeNil)

		Convey("When the first pass hits the failure", func() {
			sum, err := r.RunPass(ctx)

			Convey("Then the event stays unprocessed for retry", func() {
				So(err, ShouldBeNil)
				So(sum.Failed, ShouldEqual, 1)

				n, err := store.CountUnprocessed(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("And the next pass retries the event", func() {
				So(err, ShouldBeNil)
				sum, err := r.RunPass(ctx)
				So(err, ShouldBeNil)
				So(sum.Processed, ShouldEqual, 1)

				Convey("Then the skill contribution is not double counted", func() {
					points, err := store.TaskPointsByDay(ctx, "u1", "go", []types.Day{today})
					So(err, ShouldBeNil)
					So(points[today], ShouldEqual, 4)

					daySum, err := store.UserDailySummary(ctx, "u1", today)
					So(err, ShouldBeNil)
					So(daySum.TasksCompleted, ShouldEqual, 1)
				})
			})
		})
	})
}

// blockingStore parks UnprocessedEvents until released, to hold a pass
// in flight.
type blockingStore struct {
	*repository.MemStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) UnprocessedEvents(ctx context.Context, limit int) ([]model.Event, error) {
	close(b.entered)
	<-b.release
	return b.MemStore.UnprocessedEvents(ctx, limit)
}

func TestRunPassSingleFlight(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pass already in flight", t, func() {
		store := &blockingStore{
			MemStore: repository.NewMemStore(),
			entered:  make(chan struct{}),
			release:  make(chan struct{}),
		}
		r := newRunner(store)

		done := make(chan error, 1)
		go func() {
			_, err := r.RunPass(ctx)
			done <- err
		}()
		<-store.entered

		Convey("When a second pass starts", func() {
			_, err := r.RunPass(ctx)

			Convey("Then it is rejected immediately", func() {
				So(err, ShouldWrap, worker.ErrPassInFlight)

				close(store.release)
				So(<-done, ShouldBeNil)
			})
		})
	})
}

func TestRunNeglectSweep(t *testing.T) {
	ctx := context.Background()
	today := types.DayOf(testNow)

	Convey("Given mastery records of varying staleness", t, func() {
		store := repository.NewMemStore()
		r := newRunner(store)

		seed := func(skillID string, lastActive types.Day) {
			key := repository.ContributionKey{EventID: "seed-" + skillID, UserID: "u1", SkillID: skillID, Date: lastActive}
			_, err := store.ApplyContribution(ctx, key, func(_ *model.DailyAggregate, _ *model.SkillMastery) (model.DailyAggregate, model.SkillMastery) {
				return model.DailyAggregate{UserID: "u1", SkillID: skillID, Date: lastActive, TaskPoints: 1},
					model.SkillMastery{UserID: "u1", SkillID: skillID, DecayedSum: 1, Mastery: 10, LastActive: lastActive}
			})
			So(err, ShouldBeNil)
		}
		seed("fresh", today.AddDays(-3))
		seed("boundary", today.AddDays(-7))
		seed("stale", today.AddDays(-30))

		Convey("When the sweep runs", func() {
			emitted, err := r.RunNeglectSweep(ctx)

			Convey("Then skills at or past seven days are flagged", func() {
				So(err, ShouldBeNil)
				So(emitted, ShouldEqual, 2)

				insights, err := store.InsightsByUser(ctx, "u1", 10)
				So(err, ShouldBeNil)
				So(len(insights), ShouldEqual, 2)
				flagged := map[string]bool{}
				for _, in := range insights {
					So(in.Key, ShouldEqual, model.InsightNeglectedSkill)
					flagged[in.SkillID] = true
				}
				So(flagged["boundary"], ShouldBeTrue)
				So(flagged["stale"], ShouldBeTrue)
				So(flagged["fresh"], ShouldBeFalse)
			})
		})
	})
}

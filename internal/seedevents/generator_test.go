package seedevents

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerateEvents(t *testing.T) {
	cfg := &Config{
		NumEvents: 50,
		NumUsers:  5,
		NumSkills: 4,
		SpanDays:  14,
	}

	Convey("Given a generation config", t, func() {
		stats := &Stats{}
		events, err := generateEvents(context.Background(), cfg, stats)
		So(err, ShouldBeNil)
		So(len(events), ShouldEqual, cfg.NumEvents)
		So(stats.EventsGenerated, ShouldEqual, cfg.NumEvents)

		Convey("When inspecting the generated events", func() {
			now := time.Now().UTC()
			for _, e := range events {
				So(e.EventID, ShouldNotBeEmpty)
				So(e.Type, ShouldEqual, "task.completed")
				So(e.UserID, ShouldNotBeEmpty)

				ts := time.UnixMilli(e.Timestamp).UTC()
				So(ts, ShouldHappenOnOrBefore, now)
				So(ts, ShouldHappenAfter, now.AddDate(0, 0, -cfg.SpanDays-1))

				So(len(e.Payload.Skills), ShouldBeBetweenOrEqual, 1, maxSkillsPerEvent)
				seen := make(map[string]bool, len(e.Payload.Skills))
				for _, s := range e.Payload.Skills {
					So(s.SkillID, ShouldNotBeEmpty)
					So(s.Weight, ShouldBeBetweenOrEqual, weightMin, weightMin+weightRange)
					So(seen[s.SkillID], ShouldBeFalse)
					seen[s.SkillID] = true
				}

				So(e.Payload.Difficulty, ShouldBeIn, "easy", "medium", "hard")
				So(e.Payload.DurationMinutes, ShouldBeBetweenOrEqual, durationMinMinutes, durationMinMinutes+durationRange)
			}
		})

		Convey("When decoding a generated payload the way the server does", func() {
			data, err := json.Marshal(events[0].Payload)
			So(err, ShouldBeNil)

			var p model.Payload
			So(json.Unmarshal(data, &p), ShouldBeNil)
			So(p.DurationMinutes, ShouldEqual, events[0].Payload.DurationMinutes)
			So(len(p.Skills), ShouldEqual, len(events[0].Payload.Skills))
			So(p.Difficulty, ShouldEqual, events[0].Payload.Difficulty)
		})
	})
}

func TestGenerateEventsCancellation(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := generateEvents(ctx, &Config{NumEvents: 10, NumUsers: 1, NumSkills: 1, SpanDays: 1}, &Stats{})
		So(err, ShouldWrap, context.Canceled)
	})
}

// Package aggregate implements the additive daily upserts: per
// (user, skill, day) totals and the skill-agnostic per (user, day)
// summary. No decay, no bounds; creation and increment share one path.
package aggregate

import (
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// Upsert folds one contribution into a (user, skill, day) aggregate.
// A nil existing record creates the aggregate with exactly this
// contribution's values.
func Upsert(existing *model.DailyAggregate, userID, skillID string, day types.Day, points float64, seconds int64, now time.Time) model.DailyAggregate {
	agg := model.DailyAggregate{
		UserID:  userID,
		SkillID: skillID,
		Date:    day,
	}
	if existing != nil {
		agg = *existing
	}
	agg.TaskPoints += points
	agg.TimeSeconds += seconds
	agg.TasksCompleted++
	agg.UpdatedAt = now
	return agg
}

// UpsertUserDay folds one completed task into the (user, day) summary.
func UpsertUserDay(existing *model.UserDailySummary, userID string, day types.Day, seconds int64, now time.Time) model.UserDailySummary {
	sum := model.UserDailySummary{
		UserID: userID,
		Date:   day,
	}
	if existing != nil {
		sum = *existing
	}
	sum.TasksCompleted++
	sum.TimeSeconds += seconds
	sum.UpdatedAt = now
	return sum
}

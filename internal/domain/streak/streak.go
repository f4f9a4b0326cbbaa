// Package streak tracks consecutive active days per user as a small
// state machine over {current, longest, last_active_date}.
package streak

import (
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// Advance applies one day of activity to a user's streak record and
// returns the new state. Transitions:
//
//   - no existing record: current=1, longest=1
//   - same day as last activity: no-op (same-day idempotency, so any
//     number of events on one day counts the streak once)
//   - exactly the next day: current+1, longest=max(longest, current)
//   - anything else (gap of two or more days, or an out-of-order
//     earlier day): current resets to 1, longest untouched
//
// Reset reports whether the streak was broken, for observability.
func Advance(existing *model.StreakRecord, userID string, day types.Day, now time.Time) (rec model.StreakRecord, reset bool) {
	if existing == nil {
		return model.StreakRecord{
			UserID:         userID,
			CurrentStreak:  1,
			LongestStreak:  1,
			LastActiveDate: day,
			UpdatedAt:      now,
		}, false
	}

	rec = *existing
	rec.UpdatedAt = now

	switch {
	case day.Equal(existing.LastActiveDate):
		// Already counted today.
		return rec, false
	case day.Equal(existing.LastActiveDate.Next()):
		rec.CurrentStreak = existing.CurrentStreak + 1
		if rec.CurrentStreak > rec.LongestStreak {
			rec.LongestStreak = rec.CurrentStreak
		}
		rec.LastActiveDate = day
		return rec, false
	default:
		rec.CurrentStreak = 1
		rec.LastActiveDate = day
		if rec.LongestStreak < 1 {
			rec.LongestStreak = 1
		}
		return rec, true
	}
}

// Package repository defines the derived-state store interface and its
// in-memory and SQLite implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// ContributionKey identifies one skill's share of one event. The
// (EventID, SkillID) pair doubles as the idempotency marker so a
// retried event cannot double-count a skill it already applied.
type ContributionKey struct {
	EventID string
	UserID  string
	SkillID string
	Date    types.Day
}

// ActivityKey identifies the user-level application of one event
// (daily summary plus streak), idempotent per EventID.
type ActivityKey struct {
	EventID string
	UserID  string
	Date    types.Day
}

// ContributionFn computes the next daily aggregate and mastery state
// from the current ones. Nil inputs mean the record does not exist yet.
// The function must be pure: the store may call it more than once when
// an optimistic transaction retries.
type ContributionFn func(agg *model.DailyAggregate, sm *model.SkillMastery) (model.DailyAggregate, model.SkillMastery)

// ActivityFn computes the next user daily summary and streak state from
// the current ones. Same purity contract as ContributionFn.
type ActivityFn func(sum *model.UserDailySummary, st *model.StreakRecord) (model.UserDailySummary, model.StreakRecord)

// EventStore provides access to the immutable event log.
type EventStore interface {
	// AppendEvent stores a new event. Returns ErrDuplicateEvent when an
	// event with the same EventID already exists.
	AppendEvent(ctx context.Context, e model.Event) (model.Event, error)

	// UnprocessedEvents returns up to limit events with processed=false,
	// ordered by timestamp ascending.
	UnprocessedEvents(ctx context.Context, limit int) ([]model.Event, error)

	// CountUnprocessed returns the current backlog size.
	CountUnprocessed(ctx context.Context) (int, error)

	// MarkProcessed flips an event to processed exactly once.
	MarkProcessed(ctx context.Context, id string, at time.Time) error

	// RecentEvents returns a user's newest events, newest first.
	RecentEvents(ctx context.Context, userID string, limit int) ([]model.Event, error)
}

// AggregateStore provides transactional access to derived state. All
// writes go through Apply* so every read-modify-write is a single
// store transaction paired with its idempotency marker.
type AggregateStore interface {
	// ApplyContribution runs fn inside one transaction covering the
	// daily aggregate, the mastery record and the contribution marker.
	// When the key was already applied, fn is skipped and applied is
	// false. ErrConflict reports an exhausted optimistic transaction.
	ApplyContribution(ctx context.Context, key ContributionKey, fn ContributionFn) (applied bool, err error)

	// ApplyUserActivity is ApplyContribution's user-level counterpart,
	// covering the daily summary and the streak record.
	ApplyUserActivity(ctx context.Context, key ActivityKey, fn ActivityFn) (applied bool, err error)

	// TaskPointsByDay reads task_points for the given days of one
	// (user, skill) pair. Days with no aggregate are absent.
	TaskPointsByDay(ctx context.Context, userID, skillID string, days []types.Day) (map[types.Day]float64, error)

	// SkillMasteries returns every mastery record for a user.
	SkillMasteries(ctx context.Context, userID string) ([]model.SkillMastery, error)

	// NeglectedMasteries returns mastery records whose last activity is
	// on or before cutoff (inclusive boundary).
	NeglectedMasteries(ctx context.Context, cutoff types.Day) ([]model.SkillMastery, error)

	// UserDailySummary returns one day's summary, or ErrNotFound.
	UserDailySummary(ctx context.Context, userID string, day types.Day) (model.UserDailySummary, error)

	// Streak returns a user's streak record, or ErrNotFound.
	Streak(ctx context.Context, userID string) (model.StreakRecord, error)
}

// InsightStore provides append-only access to generated insights.
type InsightStore interface {
	AppendInsight(ctx context.Context, in model.Insight) error

	// InsightsByUser returns a user's newest insights, newest first.
	InsightsByUser(ctx context.Context, userID string, limit int) ([]model.Insight, error)
}

// Store bundles every persistence concern of the service.
type Store interface {
	EventStore
	AggregateStore
	InsightStore

	Close() error
}

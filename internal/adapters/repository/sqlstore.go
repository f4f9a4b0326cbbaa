package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// appliedMarker records an idempotency key inside the same transaction
// as the records it guards.
type appliedMarker struct {
	Key       string    `gorm:"primaryKey;column:key"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (appliedMarker) TableName() string { return "applied_markers" }

// SQLStore is a gorm-backed Store on SQLite. Single-writer semantics of
// SQLite give the per-key transaction guarantees the worker relies on.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens (or creates) the SQLite database at path and
// migrates the schema.
func NewSQLStore(path string) (*SQLStore, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
	}
	if err := db.AutoMigrate(
		&model.Event{},
		&model.DailyAggregate{},
		&model.SkillMastery{},
		&model.UserDailySummary{},
		&model.StreakRecord{},
		&model.Insight{},
		&appliedMarker{},
	); err != nil {
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// AppendEvent stores a new event, enforcing EventID uniqueness.
func (s *SQLStore) AppendEvent(ctx context.Context, e model.Event) (model.Event, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.EventID != "" {
			var count int64
			if err := tx.Model(&model.Event{}).Where("event_id = ?", e.EventID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateEvent
			}
		}
		return tx.Create(&e).Error
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("append event %s: %w", e.EventID, err)
	}
	return e, nil
}

// UnprocessedEvents returns up to limit unprocessed events in ascending
// timestamp order.
func (s *SQLStore) UnprocessedEvents(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	var events []model.Event
	err := s.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("timestamp asc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed events: %w", err)
	}
	return events, nil
}

// CountUnprocessed returns the backlog size.
func (s *SQLStore) CountUnprocessed(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("processed = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unprocessed events: %w", err)
	}
	return int(count), nil
}

// MarkProcessed flips an event to processed.
func (s *SQLStore) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{"processed": true, "processed_at": at})
	if res.Error != nil {
		return fmt.Errorf("mark processed %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark processed %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecentEvents returns a user's newest events.
func (s *SQLStore) RecentEvents(ctx context.Context, userID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	var events []model.Event
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("fetch recent events: %w", err)
	}
	return events, nil
}

// ApplyContribution runs fn inside one database transaction covering
// the aggregate, the mastery record and the contribution marker.
func (s *SQLStore) ApplyContribution(ctx context.Context, key ContributionKey, fn ContributionFn) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := contributionMarker(key.EventID, key.SkillID)
		done, err := s.markerExists(tx, marker)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		var aggIn *model.DailyAggregate
		var agg model.DailyAggregate
		err = tx.Where("user_id = ? AND skill_id = ? AND date = ?", key.UserID, key.SkillID, key.Date).
			First(&agg).Error
		switch {
		case err == nil:
			aggIn = &agg
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		var smIn *model.SkillMastery
		var sm model.SkillMastery
		err = tx.Where("user_id = ? AND skill_id = ?", key.UserID, key.SkillID).
			First(&sm).Error
		switch {
		case err == nil:
			smIn = &sm
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		newAgg, newSM := fn(aggIn, smIn)
		if err := tx.Save(&newAgg).Error; err != nil {
			return err
		}
		if err := tx.Save(&newSM).Error; err != nil {
			return err
		}
		if err := tx.Create(&appliedMarker{Key: marker, CreatedAt: time.Now().UTC()}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply contribution %s/%s: %w", key.EventID, key.SkillID, err)
	}
	return applied, nil
}

// ApplyUserActivity is the user-level counterpart of ApplyContribution.
func (s *SQLStore) ApplyUserActivity(ctx context.Context, key ActivityKey, fn ActivityFn) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := activityMarker(key.EventID)
		done, err := s.markerExists(tx, marker)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		var sumIn *model.UserDailySummary
		var sum model.UserDailySummary
		err = tx.Where("user_id = ? AND date = ?", key.UserID, key.Date).
			First(&sum).Error
		switch {
		case err == nil:
			sumIn = &sum
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		var stIn *model.StreakRecord
		var st model.StreakRecord
		err = tx.Where("user_id = ?", key.UserID).First(&st).Error
		switch {
		case err == nil:
			stIn = &st
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		newSum, newSt := fn(sumIn, stIn)
		if err := tx.Save(&newSum).Error; err != nil {
			return err
		}
		if err := tx.Save(&newSt).Error; err != nil {
			return err
		}
		if err := tx.Create(&appliedMarker{Key: marker, CreatedAt: time.Now().UTC()}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply user activity %s: %w", key.EventID, err)
	}
	return applied, nil
}

func (s *SQLStore) markerExists(tx *gorm.DB, key string) (bool, error) {
	var count int64
	if err := tx.Model(&appliedMarker{}).Where("key = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TaskPointsByDay reads task_points for the given days.
func (s *SQLStore) TaskPointsByDay(ctx context.Context, userID, skillID string, days []types.Day) (map[types.Day]float64, error) {
	keys := make([]string, 0, len(days))
	for _, d := range days {
		keys = append(keys, d.String())
	}

	var aggs []model.DailyAggregate
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND skill_id = ? AND date IN ?", userID, skillID, keys).
		Find(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("fetch daily points: %w", err)
	}

	out := make(map[types.Day]float64, len(aggs))
	for _, agg := range aggs {
		out[agg.Date] = agg.TaskPoints
	}
	return out, nil
}

// SkillMasteries returns every mastery record for a user.
func (s *SQLStore) SkillMasteries(ctx context.Context, userID string) ([]model.SkillMastery, error) {
	var out []model.SkillMastery
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("skill_id asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("fetch skill masteries: %w", err)
	}
	return out, nil
}

// NeglectedMasteries returns mastery records last active on or before
// cutoff.
func (s *SQLStore) NeglectedMasteries(ctx context.Context, cutoff types.Day) ([]model.SkillMastery, error) {
	var out []model.SkillMastery
	err := s.db.WithContext(ctx).
		Where("last_active <= ?", cutoff.String()).
		Order("user_id asc, skill_id asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("fetch neglected masteries: %w", err)
	}
	return out, nil
}

// UserDailySummary returns one day's summary.
func (s *SQLStore) UserDailySummary(ctx context.Context, userID string, day types.Day) (model.UserDailySummary, error) {
	var sum model.UserDailySummary
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, day).
		First(&sum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UserDailySummary{}, fmt.Errorf("summary %s/%s: %w", userID, day, ErrNotFound)
	}
	if err != nil {
		return model.UserDailySummary{}, fmt.Errorf("fetch summary: %w", err)
	}
	return sum, nil
}

// Streak returns a user's streak record.
func (s *SQLStore) Streak(ctx context.Context, userID string) (model.StreakRecord, error) {
	var st model.StreakRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.StreakRecord{}, fmt.Errorf("streak %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return model.StreakRecord{}, fmt.Errorf("fetch streak: %w", err)
	}
	return st, nil
}

// AppendInsight stores a generated insight.
func (s *SQLStore) AppendInsight(ctx context.Context, in model.Insight) error {
	if err := s.db.WithContext(ctx).Create(&in).Error; err != nil {
		return fmt.Errorf("append insight: %w", err)
	}
	return nil
}

// InsightsByUser returns a user's newest insights.
func (s *SQLStore) InsightsByUser(ctx context.Context, userID string, limit int) ([]model.Insight, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	var out []model.Insight
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("generated_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("fetch insights: %w", err)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}
	return nil
}

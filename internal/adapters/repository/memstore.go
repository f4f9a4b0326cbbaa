package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/metrics"
)

const defaultMaxTxnRetries = 5

// MemStore is an in-memory Store. Mutations use optimistic per-key
// versioning: read a versioned snapshot, run the caller's function
// outside the lock, then commit only if no concurrent writer touched
// the same keys. That mirrors the compare-and-set contract a document
// store provides, so worker code behaves identically on both backends.
type MemStore struct {
	mu sync.RWMutex

	events     map[string]model.Event // by internal id
	byEventID  map[string]string      // client event id -> internal id
	aggregates map[string]model.DailyAggregate
	masteries  map[string]model.SkillMastery
	summaries  map[string]model.UserDailySummary
	streaks    map[string]model.StreakRecord
	applied    map[string]struct{}
	insights   []model.Insight
	versions   map[string]uint64

	maxTxnRetries int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		events:        make(map[string]model.Event),
		byEventID:     make(map[string]string),
		aggregates:    make(map[string]model.DailyAggregate),
		masteries:     make(map[string]model.SkillMastery),
		summaries:     make(map[string]model.UserDailySummary),
		streaks:       make(map[string]model.StreakRecord),
		applied:       make(map[string]struct{}),
		versions:      make(map[string]uint64),
		maxTxnRetries: defaultMaxTxnRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key helpers. Day keys are fixed-width, so "|" joins are unambiguous.

func aggKey(userID, skillID string, day types.Day) string {
	return "agg|" + userID + "|" + skillID + "|" + day.String()
}

func masteryKey(userID, skillID string) string {
	return "mastery|" + userID + "|" + skillID
}

func summaryKey(userID string, day types.Day) string {
	return "summary|" + userID + "|" + day.String()
}

func streakKey(userID string) string {
	return "streak|" + userID
}

// The two marker families share one table in the SQL store, so their
// prefixes must keep them from ever producing the same key.
func contributionMarker(eventID, skillID string) string {
	return "contrib|" + eventID + "|" + skillID
}

func activityMarker(eventID string) string {
	return "activity|" + eventID
}

// AppendEvent stores a new event, enforcing EventID uniqueness.
func (s *MemStore) AppendEvent(_ context.Context, e model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.EventID != "" {
		if _, exists := s.byEventID[e.EventID]; exists {
			return model.Event{}, fmt.Errorf("append event %s: %w", e.EventID, ErrDuplicateEvent)
		}
	}
	s.events[e.ID] = e
	if e.EventID != "" {
		s.byEventID[e.EventID] = e.ID
	}
	return e, nil
}

// UnprocessedEvents returns up to limit unprocessed events in ascending
// timestamp order.
func (s *MemStore) UnprocessedEvents(_ context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	pending := make([]model.Event, 0, limit)
	for _, e := range s.events {
		if !e.Processed {
			pending = append(pending, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].Timestamp.Equal(pending[j].Timestamp) {
			return pending[i].Timestamp.Before(pending[j].Timestamp)
		}
		return pending[i].ID < pending[j].ID
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// CountUnprocessed returns the backlog size.
func (s *MemStore) CountUnprocessed(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.events {
		if !e.Processed {
			n++
		}
	}
	return n, nil
}

// MarkProcessed flips an event to processed.
func (s *MemStore) MarkProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return fmt.Errorf("mark processed %s: %w", id, ErrNotFound)
	}
	if e.Processed {
		return nil
	}
	e.Processed = true
	e.ProcessedAt = &at
	s.events[id] = e
	return nil
}

// RecentEvents returns a user's newest events.
func (s *MemStore) RecentEvents(_ context.Context, userID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out := make([]model.Event, 0, limit)
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ApplyContribution implements the per-skill transaction: aggregate and
// mastery commit together with the (event, skill) marker or not at all.
func (s *MemStore) ApplyContribution(ctx context.Context, key ContributionKey, fn ContributionFn) (bool, error) {
	marker := contributionMarker(key.EventID, key.SkillID)
	ak := aggKey(key.UserID, key.SkillID, key.Date)
	mk := masteryKey(key.UserID, key.SkillID)

	for attempt := 0; attempt <= s.maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("apply contribution: %w", err)
		}
		if attempt > 0 {
			metrics.RecordStoreTxnRetry()
		}

		s.mu.RLock()
		if _, done := s.applied[marker]; done {
			s.mu.RUnlock()
			return false, nil
		}
		aggV, mV := s.versions[ak], s.versions[mk]
		agg, aggOK := s.aggregates[ak]
		sm, smOK := s.masteries[mk]
		s.mu.RUnlock()

		var aggIn *model.DailyAggregate
		var smIn *model.SkillMastery
		if aggOK {
			aggIn = &agg
		}
		if smOK {
			smIn = &sm
		}
		newAgg, newSM := fn(aggIn, smIn)

		s.mu.Lock()
		if s.versions[ak] != aggV || s.versions[mk] != mV {
			s.mu.Unlock()
			continue
		}
		if _, done := s.applied[marker]; done {
			s.mu.Unlock()
			return false, nil
		}
		s.aggregates[ak] = newAgg
		s.masteries[mk] = newSM
		s.applied[marker] = struct{}{}
		s.versions[ak]++
		s.versions[mk]++
		s.mu.Unlock()
		return true, nil
	}

	metrics.RecordStoreTxnConflict()
	return false, fmt.Errorf("apply contribution %s/%s: %w", key.EventID, key.SkillID, ErrConflict)
}

// ApplyUserActivity is the user-level counterpart of ApplyContribution.
func (s *MemStore) ApplyUserActivity(ctx context.Context, key ActivityKey, fn ActivityFn) (bool, error) {
	marker := activityMarker(key.EventID)
	sk := summaryKey(key.UserID, key.Date)
	stk := streakKey(key.UserID)

	for attempt := 0; attempt <= s.maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("apply user activity: %w", err)
		}
		if attempt > 0 {
			metrics.RecordStoreTxnRetry()
		}

		s.mu.RLock()
		if _, done := s.applied[marker]; done {
			s.mu.RUnlock()
			return false, nil
		}
		sumV, stV := s.versions[sk], s.versions[stk]
		sum, sumOK := s.summaries[sk]
		st, stOK := s.streaks[stk]
		s.mu.RUnlock()

		var sumIn *model.UserDailySummary
		var stIn *model.StreakRecord
		if sumOK {
			sumIn = &sum
		}
		if stOK {
			stIn = &st
		}
		newSum, newSt := fn(sumIn, stIn)

		s.mu.Lock()
		if s.versions[sk] != sumV || s.versions[stk] != stV {
			s.mu.Unlock()
			continue
		}
		if _, done := s.applied[marker]; done {
			s.mu.Unlock()
			return false, nil
		}
		s.summaries[sk] = newSum
		s.streaks[stk] = newSt
		s.applied[marker] = struct{}{}
		s.versions[sk]++
		s.versions[stk]++
		s.mu.Unlock()
		return true, nil
	}

	metrics.RecordStoreTxnConflict()
	return false, fmt.Errorf("apply user activity %s: %w", key.EventID, ErrConflict)
}

// TaskPointsByDay reads task_points for the given days.
func (s *MemStore) TaskPointsByDay(_ context.Context, userID, skillID string, days []types.Day) (map[types.Day]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[types.Day]float64, len(days))
	for _, day := range days {
		if agg, ok := s.aggregates[aggKey(userID, skillID, day)]; ok {
			out[day] = agg.TaskPoints
		}
	}
	return out, nil
}

// SkillMasteries returns every mastery record for a user, ordered by
// skill id for deterministic output.
func (s *MemStore) SkillMasteries(_ context.Context, userID string) ([]model.SkillMastery, error) {
	s.mu.RLock()
	out := make([]model.SkillMastery, 0)
	for _, m := range s.masteries {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SkillID < out[j].SkillID })
	return out, nil
}

// NeglectedMasteries scans all mastery records for last activity on or
// before cutoff. Full-table scan; per-user skill counts are small.
func (s *MemStore) NeglectedMasteries(_ context.Context, cutoff types.Day) ([]model.SkillMastery, error) {
	s.mu.RLock()
	out := make([]model.SkillMastery, 0)
	for _, m := range s.masteries {
		if !m.LastActive.IsZero() && !m.LastActive.After(cutoff) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].SkillID < out[j].SkillID
	})
	return out, nil
}

// UserDailySummary returns one day's summary.
func (s *MemStore) UserDailySummary(_ context.Context, userID string, day types.Day) (model.UserDailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.summaries[summaryKey(userID, day)]
	if !ok {
		return model.UserDailySummary{}, fmt.Errorf("summary %s/%s: %w", userID, day, ErrNotFound)
	}
	return sum, nil
}

// Streak returns a user's streak record.
func (s *MemStore) Streak(_ context.Context, userID string) (model.StreakRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streaks[streakKey(userID)]
	if !ok {
		return model.StreakRecord{}, fmt.Errorf("streak %s: %w", userID, ErrNotFound)
	}
	return st, nil
}

// AppendInsight stores a generated insight.
func (s *MemStore) AppendInsight(_ context.Context, in model.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, in)
	return nil
}

// InsightsByUser returns a user's newest insights.
func (s *MemStore) InsightsByUser(_ context.Context, userID string, limit int) ([]model.Insight, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out := make([]model.Insight, 0, limit)
	for _, in := range s.insights {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close releases nothing for the in-memory store.
func (s *MemStore) Close() error { return nil }

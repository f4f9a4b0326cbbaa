// Package worker runs the aggregation batch pass and the neglected-skill
// sweep. It is the only writer of derived state.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/aggregate"
	"github.com/okian/pulse/internal/domain/insight"
	"github.com/okian/pulse/internal/domain/mastery"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/streak"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Default runner configuration constants.
const (
	defaultBatchSize   = 100
	defaultPassTimeout = 2 * time.Minute
)

// Store is the persistence surface the runner needs.
type Store interface {
	repository.EventStore
	repository.AggregateStore
	repository.InsightStore
}

// Scorer resolves difficulty labels and skill weights into points.
type Scorer interface {
	Points(difficulty string, weight float64) float64
}

// Summary reports the outcome of one batch pass.
type Summary struct {
	Fetched   int
	Processed int
	Skipped   int
	Failed    int
}

// Any reports whether the pass did anything, for run-once exit status.
func (s Summary) Any() bool {
	return s.Processed > 0 || s.Skipped > 0
}

// Runner orchestrates batch passes. One pass: fetch up to batchSize
// unprocessed events by ascending timestamp, partition them by user,
// process partitions concurrently and events within a partition
// sequentially, then mark each event processed. Mastery and streak
// state depend on application order, so per-user serialization is a
// correctness requirement, not an optimization.
type Runner struct {
	store    Store
	scorer   Scorer
	mastery  *mastery.Model
	detector *insight.Detector

	batchSize   int
	passTimeout time.Duration
	concurrency int
	neglectDays int
	clock       func() time.Time

	// Overlapping passes would double-fetch the same events; the guard
	// enforces single-flight within this process.
	inFlight atomic.Bool

	logger logger.Logger
}

// NewRunner creates a batch pass runner.
func NewRunner(store Store, scorer Scorer, masteryModel *mastery.Model, detector *insight.Detector, opts ...Option) *Runner {
	r := &Runner{
		store:       store,
		scorer:      scorer,
		mastery:     masteryModel,
		detector:    detector,
		batchSize:   defaultBatchSize,
		passTimeout: defaultPassTimeout,
		concurrency: runtime.NumCPU(),
		neglectDays: insight.DefaultNeglectDays,
		clock:       time.Now,
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunPass executes one batch pass. Returns ErrPassInFlight when another
// pass is still running. Individual event failures do not fail the
// pass; failed events stay unprocessed and retry next pass.
func (r *Runner) RunPass(ctx context.Context) (Summary, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return Summary{}, ErrPassInFlight
	}
	defer r.inFlight.Store(false)

	start := r.clock()
	ctx, cancel := context.WithTimeout(ctx, r.passTimeout)
	defer cancel()

	events, err := r.store.UnprocessedEvents(ctx, r.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch batch: %w", err)
	}
	if len(events) == 0 {
		r.logger.Debug(ctx, "no events to process")
		return Summary{}, nil
	}

	// Partition by user, preserving the fetch's timestamp order.
	partitions := make(map[string][]model.Event)
	userOrder := make([]string, 0)
	for _, e := range events {
		if _, seen := partitions[e.UserID]; !seen {
			userOrder = append(userOrder, e.UserID)
		}
		partitions[e.UserID] = append(partitions[e.UserID], e)
	}

	var processed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, userID := range userOrder {
		batch := partitions[userID]
		g.Go(func() error {
			for _, e := range batch {
				if err := gctx.Err(); err != nil {
					// Pass deadline hit: remaining events stay
					// unprocessed and retry next pass.
					return nil
				}
				outcome, err := r.processEvent(gctx, e)
				if err != nil {
					failed.Add(1)
					metrics.RecordEventFailure()
					r.logger.Error(gctx, "event processing failed; will retry next pass",
						logger.String("event", e.ID),
						logger.String("user", e.UserID),
						logger.Error(err),
					)
					continue
				}
				switch outcome {
				case outcomeProcessed:
					processed.Add(1)
					metrics.RecordEventProcessed()
				case outcomeSkipped:
					skipped.Add(1)
					metrics.RecordEventSkipped()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{
		Fetched:   len(events),
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}

	elapsed := r.clock().Sub(start)
	metrics.RecordPass(elapsed.Seconds())
	metrics.UpdatePassLastUnix(float64(r.clock().Unix()))
	if backlog, err := r.store.CountUnprocessed(ctx); err == nil {
		metrics.UpdateUnprocessedEvents(backlog)
	}

	r.logger.Info(ctx, "batch pass complete",
		logger.Int("fetched", sum.Fetched),
		logger.Int("processed", sum.Processed),
		logger.Int("skipped", sum.Skipped),
		logger.Int("failed", sum.Failed),
		logger.Duration("elapsed", elapsed),
	)
	return sum, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
)

// processEvent applies all derived effects of one event and marks it
// processed. Every skill contribution and the user-level update carry
// idempotency markers, so a retried event after a partial failure skips
// what was already applied instead of double counting.
func (r *Runner) processEvent(ctx context.Context, e model.Event) (outcome, error) {
	now := r.clock()

	if e.Type != model.TypeTaskCompleted || len(e.Payload.Skills) == 0 {
		// Unknown type or malformed payload: nothing sensible to
		// retry, mark processed with no derived effect.
		if err := r.store.MarkProcessed(ctx, e.ID, now); err != nil {
			return 0, fmt.Errorf("mark skipped event: %w", err)
		}
		return outcomeSkipped, nil
	}

	day := types.DayOf(e.Timestamp)
	seconds := int64(e.Payload.DurationMinutes) * 60

	skillIDs := make([]string, 0, len(e.Payload.Skills))
	for _, ref := range e.Payload.Skills {
		if ref.SkillID == "" {
			continue
		}
		skillIDs = append(skillIDs, ref.SkillID)
		points := r.scorer.Points(e.Payload.Difficulty, ref.Weight)

		key := repository.ContributionKey{
			EventID: e.ID,
			UserID:  e.UserID,
			SkillID: ref.SkillID,
			Date:    day,
		}
		applied, err := r.store.ApplyContribution(ctx, key, func(agg *model.DailyAggregate, sm *model.SkillMastery) (model.DailyAggregate, model.SkillMastery) {
			newAgg := aggregate.Upsert(agg, e.UserID, ref.SkillID, day, points, seconds, now)
			newSM := r.mastery.ApplyPoints(sm, e.UserID, ref.SkillID, points, day, now)
			return newAgg, newSM
		})
		if err != nil {
			return 0, fmt.Errorf("apply skill %s: %w", ref.SkillID, err)
		}
		if applied {
			metrics.RecordContributionApplied()
		} else {
			metrics.RecordContributionReplayed()
		}
	}

	// Drop detection is best-effort: a detector failure must not keep
	// the event from being marked processed.
	r.checkDrops(ctx, e.UserID, skillIDs)

	streakReset := false
	activityKey := repository.ActivityKey{
		EventID: e.ID,
		UserID:  e.UserID,
		Date:    day,
	}
	applied, err := r.store.ApplyUserActivity(ctx, activityKey, func(sum *model.UserDailySummary, st *model.StreakRecord) (model.UserDailySummary, model.StreakRecord) {
		newSum := aggregate.UpsertUserDay(sum, e.UserID, day, seconds, now)
		newSt, reset := streak.Advance(st, e.UserID, day, now)
		streakReset = reset
		return newSum, newSt
	})
	if err != nil {
		return 0, fmt.Errorf("apply user activity: %w", err)
	}
	if applied && streakReset {
		metrics.RecordStreakReset()
	}

	if err := r.store.MarkProcessed(ctx, e.ID, r.clock()); err != nil {
		return 0, fmt.Errorf("mark processed: %w", err)
	}
	return outcomeProcessed, nil
}

// checkDrops runs the week-over-week detector for the given skills and
// appends any insights. Failures are logged and counted, never
// propagated.
func (r *Runner) checkDrops(ctx context.Context, userID string, skillIDs []string) {
	if len(skillIDs) == 0 {
		return
	}
	now := r.clock()
	insights, err := r.detector.CheckDrop(ctx, userID, skillIDs, types.DayOf(now), now)
	if err != nil {
		metrics.RecordDetectorError()
		r.logger.Warn(ctx, "drop detection failed",
			logger.String("user", userID),
			logger.Error(err),
		)
		return
	}
	for _, in := range insights {
		if err := r.store.AppendInsight(ctx, in); err != nil {
			metrics.RecordDetectorError()
			r.logger.Warn(ctx, "append insight failed",
				logger.String("user", in.UserID),
				logger.String("skill", in.SkillID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordInsight(in.Key, in.Severity)
		r.logger.Info(ctx, "insight generated",
			logger.String("key", in.Key),
			logger.String("severity", in.Severity),
			logger.String("user", in.UserID),
			logger.String("skill", in.SkillID),
		)
	}
}

// RunNeglectSweep scans all mastery records for skills with no activity
// for neglectDays or more and emits one insight per neglected skill.
// Intended for a coarser schedule than RunPass (e.g. daily).
func (r *Runner) RunNeglectSweep(ctx context.Context) (int, error) {
	start := r.clock()
	today := types.DayOf(start)
	cutoff := insight.NeglectCutoff(today, r.neglectDays)

	masteries, err := r.store.NeglectedMasteries(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scan neglected masteries: %w", err)
	}

	emitted := 0
	for _, in := range insight.Neglected(masteries, r.neglectDays, start) {
		if err := r.store.AppendInsight(ctx, in); err != nil {
			metrics.RecordDetectorError()
			r.logger.Warn(ctx, "append neglect insight failed",
				logger.String("user", in.UserID),
				logger.String("skill", in.SkillID),
				logger.Error(err),
			)
			continue
		}
		emitted++
		metrics.RecordInsight(in.Key, in.Severity)
	}

	metrics.RecordSweep(r.clock().Sub(start).Seconds(), emitted)
	r.logger.Info(ctx, "neglect sweep complete",
		logger.String("cutoff", cutoff.String()),
		logger.Int("neglected", emitted),
	)
	return emitted, nil
}

// Package insight derives human-readable signals from aggregate trends.
// Both detectors are strict read-then-append: they never mutate event or
// aggregate state.
package insight

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// Detector defaults.
const (
	// DefaultDropThreshold emits an insight when points fall at least
	// 10% week-over-week.
	DefaultDropThreshold = -0.10

	// DefaultCriticalDrop upgrades severity when the fall exceeds 25%.
	DefaultCriticalDrop = 0.25

	// DefaultWindowDays is the comparison window length: the last
	// window is measured against the window immediately before it.
	DefaultWindowDays = 7

	// DefaultNeglectDays flags a skill as neglected when it has seen
	// no activity for this many days. The boundary is inclusive: a
	// skill last active exactly this many days ago is neglected.
	DefaultNeglectDays = 7

	percent = 100
)

// PointsByDay reads task_points per calendar day for a (user, skill)
// pair. Days absent from the result count as zero.
type PointsByDay func(ctx context.Context, userID, skillID string, days []types.Day) (map[types.Day]float64, error)

// Detector finds week-over-week drops in per-skill task points.
type Detector struct {
	points        PointsByDay
	dropThreshold float64
	criticalDrop  float64
	windowDays    int
}

// NewDetector creates a drop detector reading history through points.
func NewDetector(points PointsByDay, opts ...Option) *Detector {
	d := &Detector{
		points:        points,
		dropThreshold: DefaultDropThreshold,
		criticalDrop:  DefaultCriticalDrop,
		windowDays:    DefaultWindowDays,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckDrop compares the last window against the previous one for each
// skill and returns an insight per drop past the threshold. Skills with
// no baseline (previous window sums to zero) are skipped: insufficient
// history, not an anomaly.
func (d *Detector) CheckDrop(ctx context.Context, userID string, skillIDs []string, today types.Day, now time.Time) ([]model.Insight, error) {
	days := today.LastN(2 * d.windowDays)

	var insights []model.Insight
	for _, skillID := range skillIDs {
		byDay, err := d.points(ctx, userID, skillID, days)
		if err != nil {
			return insights, fmt.Errorf("read daily points for %s/%s: %w", userID, skillID, err)
		}

		var last, prev float64
		for i := 0; i < d.windowDays; i++ {
			last += byDay[days[i]]
		}
		for i := d.windowDays; i < 2*d.windowDays; i++ {
			prev += byDay[days[i]]
		}
		if prev <= 0 {
			continue
		}

		drop := (last - prev) / prev
		if drop > d.dropThreshold {
			continue
		}

		severity := model.SeverityWarn
		if math.Abs(drop) > d.criticalDrop {
			severity = model.SeverityCritical
		}
		insights = append(insights, model.Insight{
			ID:       uuid.New().String(),
			UserID:   userID,
			SkillID:  skillID,
			Key:      model.InsightSkillDrop,
			Severity: severity,
			Message: fmt.Sprintf("%s dropped %d%% week-over-week",
				skillID, int(math.Round(math.Abs(drop)*percent))),
			Data: map[string]any{
				"prev7": prev,
				"last7": last,
				"drop":  drop,
			},
			GeneratedAt: now,
		})
	}
	return insights, nil
}

// NeglectCutoff returns the last-active day at or before which a skill
// counts as neglected, given "today".
func NeglectCutoff(today types.Day, neglectDays int) types.Day {
	return today.AddDays(-neglectDays)
}

// Neglected emits one insight per mastery record whose last activity is
// at or before the cutoff.
func Neglected(masteries []model.SkillMastery, neglectDays int, now time.Time) []model.Insight {
	insights := make([]model.Insight, 0, len(masteries))
	for _, m := range masteries {
		insights = append(insights, model.Insight{
			ID:       uuid.New().String(),
			UserID:   m.UserID,
			SkillID:  m.SkillID,
			Key:      model.InsightNeglectedSkill,
			Severity: model.SeverityWarn,
			Message:  fmt.Sprintf("%s inactive for %d+ days", m.SkillID, neglectDays),
			Data: map[string]any{
				"last_active": m.LastActive.String(),
			},
			GeneratedAt: now,
		})
	}
	return insights
}

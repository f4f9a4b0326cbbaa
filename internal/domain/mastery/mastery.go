// Package mastery maintains the exponentially decayed running sum per
// (user, skill) and derives the bounded mastery score from it.
package mastery

import (
	"math"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// Model defaults.
const (
	// DefaultDecay is applied once per contributing event, not per
	// elapsed day. An idle skill keeps its last decayed_sum until the
	// next contribution recomputes it; that is intentional, the sum is
	// event-weighted, not time-weighted.
	DefaultDecay = 0.95

	// DefaultScale converts the decayed sum into the 0-100 mastery
	// score before clamping.
	DefaultScale = 10

	maxMastery = 100
)

// Model holds the decay parameters. The zero value is not usable;
// construct with New.
type Model struct {
	decay float64
	scale float64
}

// New creates a decay model with the standard parameters, adjustable
// through options.
func New(opts ...Option) *Model {
	m := &Model{
		decay: DefaultDecay,
		scale: DefaultScale,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyPoints folds one contribution into the running sum:
//
//	newSum = existingSum*decay + points
//
// A first-ever contribution starts from zero, so it lands at full
// weight. LastActive always advances to the contributing day; callers
// apply contributions in timestamp order per user, so it never moves
// backward. The returned record is complete and ready to persist.
func (m *Model) ApplyPoints(existing *model.SkillMastery, userID, skillID string, points float64, day types.Day, now time.Time) model.SkillMastery {
	var sum float64
	if existing != nil {
		sum = existing.DecayedSum * m.decay
	}
	sum += points

	return model.SkillMastery{
		UserID:     userID,
		SkillID:    skillID,
		DecayedSum: sum,
		Mastery:    m.MasteryOf(sum),
		LastActive: day,
		UpdatedAt:  now,
	}
}

// MasteryOf derives the bounded score from a decayed sum. It is a pure
// function of the sum: min(100, round(sum*scale)), never below zero.
func (m *Model) MasteryOf(sum float64) int {
	score := int(math.Round(sum * m.scale))
	if score > maxMastery {
		return maxMastery
	}
	if score < 0 {
		return 0
	}
	return score
}

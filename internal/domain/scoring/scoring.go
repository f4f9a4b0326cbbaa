// Package scoring maps qualitative difficulty labels to numeric point
// weights used by the aggregation pipeline.
package scoring

import "strings"

// Default difficulty weights. Unrecognized or missing labels fall open
// to the easy weight rather than erroring: a mislabeled task still
// counts as work done.
const (
	defaultEasyScore   = 1
	defaultMediumScore = 2
	defaultHardScore   = 4
)

// Scorer computes point values from difficulty labels and skill weights.
type Scorer interface {
	// Score returns the base point value for a difficulty label.
	Score(difficulty string) float64

	// Points returns the contribution for one skill of an event:
	// base difficulty score scaled by the skill's weight.
	Points(difficulty string, weight float64) float64
}

// DifficultyScorer implements Scorer from a configurable label table.
type DifficultyScorer struct {
	scores       map[string]float64
	defaultScore float64
}

// New creates a difficulty scorer with the standard easy/medium/hard
// table, adjustable through options.
func New(opts ...Option) *DifficultyScorer {
	s := &DifficultyScorer{
		scores: map[string]float64{
			"easy":   defaultEasyScore,
			"medium": defaultMediumScore,
			"hard":   defaultHardScore,
		},
		defaultScore: defaultEasyScore,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the base point value for a difficulty label.
// Labels are matched case-insensitively.
func (s *DifficultyScorer) Score(difficulty string) float64 {
	if v, ok := s.scores[strings.ToLower(strings.TrimSpace(difficulty))]; ok {
		return v
	}
	return s.defaultScore
}

// Points returns Score(difficulty) * weight. A non-positive weight is
// treated as 1 so a malformed skill entry still contributes.
func (s *DifficultyScorer) Points(difficulty string, weight float64) float64 {
	if weight <= 0 {
		weight = 1
	}
	return s.Score(difficulty) * weight
}

package scoring

// Option applies a configuration option to the DifficultyScorer.
type Option func(*DifficultyScorer)

// WithScores replaces the difficulty table from configuration.
// Non-positive scores are ignored.
func WithScores(scores map[string]float64) Option {
	return func(s *DifficultyScorer) {
		if len(scores) == 0 {
			return
		}
		s.scores = make(map[string]float64, len(scores))
		for label, score := range scores {
			if score > 0 {
				s.scores[label] = score
			}
		}
	}
}

// WithDefaultScore sets the score for unrecognized difficulty labels.
func WithDefaultScore(score float64) Option {
	return func(s *DifficultyScorer) {
		if score > 0 {
			s.defaultScore = score
		}
	}
}

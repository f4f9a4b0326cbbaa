package mastery

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithDecay sets the per-event decay factor. Values outside (0, 1]
// are ignored.
func WithDecay(decay float64) Option {
	return func(m *Model) {
		if decay > 0 && decay <= 1 {
			m.decay = decay
		}
	}
}

// WithScale sets the sum-to-mastery scale factor.
func WithScale(scale float64) Option {
	return func(m *Model) {
		if scale > 0 {
			m.scale = scale
		}
	}
}

package insight

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithDropThreshold sets the week-over-week ratio at or below which an
// insight is emitted. Must be negative.
func WithDropThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold < 0 {
			d.dropThreshold = threshold
		}
	}
}

// WithCriticalDrop sets the absolute drop ratio above which severity
// upgrades to critical.
func WithCriticalDrop(ratio float64) Option {
	return func(d *Detector) {
		if ratio > 0 {
			d.criticalDrop = ratio
		}
	}
}

// WithWindowDays sets the comparison window length in days.
func WithWindowDays(days int) Option {
	return func(d *Detector) {
		if days > 0 {
			d.windowDays = days
		}
	}
}

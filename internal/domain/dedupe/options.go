package dedupe

// Option applies a configuration option to the deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds the number of IDs kept in memory. Oldest IDs are
// evicted first. maxSize <= 0 keeps every ID (unbounded).
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}

package worker

import (
	"time"

	"github.com/okian/pulse/pkg/logger"
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithBatchSize bounds how many unprocessed events one pass fetches.
func WithBatchSize(size int) Option {
	return func(r *Runner) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// WithPassTimeout bounds total pass duration. Events still in flight at
// the deadline stay unprocessed and retry next pass.
func WithPassTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		if timeout > 0 {
			r.passTimeout = timeout
		}
	}
}

// WithConcurrency bounds how many user partitions process in parallel.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithNeglectDays sets the inactivity threshold for the neglect sweep.
func WithNeglectDays(days int) Option {
	return func(r *Runner) {
		if days > 0 {
			r.neglectDays = days
		}
	}
}

// WithClock injects a time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

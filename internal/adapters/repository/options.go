package repository

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithMaxTxnRetries bounds optimistic transaction retries before a
// mutation gives up with ErrConflict.
func WithMaxTxnRetries(retries int) Option {
	return func(s *MemStore) {
		if retries > 0 {
			s.maxTxnRetries = retries
		}
	}
}

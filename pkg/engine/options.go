package engine

import "time"

type Option func(*Store)

// WithSyncWrites forces an fsync after every appended record. Off by
// default: the OS page cache decides when data reaches disk.
func WithSyncWrites(enabled bool) Option {
	return func(s *Store) {
		s.syncWrites = enabled
	}
}

// WithCompactThreshold sets how many superseded log records accumulate
// before the background worker rewrites the file.
func WithCompactThreshold(n int) Option {
	return func(s *Store) {
		s.compactThreshold = n
	}
}

// WithBackgroundCompact enables periodic compaction checks at the given
// interval. Set to 0 to disable (the default).
func WithBackgroundCompact(interval time.Duration) Option {
	return func(s *Store) {
		s.compactInterval = interval
	}
}

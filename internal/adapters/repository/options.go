package repository

import "time"

// Option applies a configuration option to the RankStore.
type Option func(*RankStore)

// WithRebuildInterval sets how often the background builder publishes a
// snapshot. Zero disables the background builder; Rebuild still works.
func WithRebuildInterval(interval time.Duration) Option {
	return func(s *RankStore) {
		if interval >= 0 {
			s.rebuildInterval = interval
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *RankStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

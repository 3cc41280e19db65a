package worker

import (
	"time"

	"github.com/okian/rankboard/pkg/logger"
)

// Option configures an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName names the worker in its log lines.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger replaces the worker's logger.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithDrainTimeout bounds how long Shutdown waits for queued updates to be
// applied before stopping the remaining workers.
func WithDrainTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

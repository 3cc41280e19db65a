// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	updatequeue "github.com/okian/rankboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/rankboard/internal/adapters/mq/worker"
	"github.com/okian/rankboard/internal/adapters/repository"
	"github.com/okian/rankboard/internal/domain/dedupe"
	"github.com/okian/rankboard/internal/domain/model"
	"github.com/okian/rankboard/internal/domain/scoring"
	"github.com/okian/rankboard/internal/domain/types"
	"github.com/okian/rankboard/pkg/logger"
	"github.com/okian/rankboard/pkg/metrics"
	"github.com/okian/rankboard/pkg/tracing"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  *repository.RankStore
	cache  dedupe.Cache
	queue  *updatequeue.InMemoryQueue
	pool   *workerpool.Pool
	flight singleflight.Group

	// Configuration
	workerCount     int
	queueSize       int
	idempotencySize int
	rebuildInterval time.Duration

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of bulk ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the bulk ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithIdempotencySize sets how many idempotency keys are remembered.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithRebuildInterval sets the snapshot rebuild cadence. Zero disables the
// background builder.
func WithRebuildInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.rebuildInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       100000,
		idempotencySize: 50000,
		rebuildInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting leaderboard service...")

	s.store = repository.NewRankStore(ctx, repository.WithRebuildInterval(s.rebuildInterval))
	s.cache = dedupe.NewInMemoryCache(dedupe.WithMaxSize(s.idempotencySize))
	s.queue = updatequeue.NewInMemoryQueue(updatequeue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("idempotencySize", s.idempotencySize),
		logger.Duration("rebuildInterval", s.rebuildInterval),
	)
	return nil
}

// Stop drains the ingest queue and stops the background builder.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping leaderboard service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown worker pool: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rank store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
	return errors.Join(errs...)
}

// UpdateScore applies delta to the customer's score and returns the result.
// A non-empty key makes the call idempotent per customer: a repeated key
// returns the score recorded the first time without applying delta again.
func (s *Service) UpdateScore(ctx context.Context, customerID int64, delta scoring.Score, key string) (scoring.Score, error) {
	if err := scoring.ValidateDelta(delta); err != nil {
		metrics.RecordScoreUpdate(metrics.OutcomeRejected)
		return scoring.Floor, err
	}
	if err := dedupe.ValidateKey(key); err != nil {
		metrics.RecordScoreUpdate(metrics.OutcomeRejected)
		return scoring.Floor, err
	}
	store, cache, err := s.components()
	if err != nil {
		return scoring.Floor, err
	}
	if key == "" {
		return apply(ctx, store, customerID, delta)
	}

	scoped := strconv.FormatInt(customerID, 10) + ":" + key
	if score, ok := cache.Lookup(ctx, scoped); ok {
		metrics.RecordScoreUpdate(metrics.OutcomeReplayed)
		return score, nil
	}

	// Concurrent requests carrying the same key share one application.
	v, err, _ := s.flight.Do(scoped, func() (any, error) {
		if score, ok := cache.Lookup(ctx, scoped); ok {
			metrics.RecordScoreUpdate(metrics.OutcomeReplayed)
			return score, nil
		}
		score, err := apply(ctx, store, customerID, delta)
		if err != nil {
			return scoring.Floor, err
		}
		cache.Record(ctx, scoped, score)
		metrics.UpdateIdempotencyEntries(cache.Size())
		return score, nil
	})
	if err != nil {
		return scoring.Floor, err
	}
	return v.(scoring.Score), nil
}

// components returns the store and cache, or ErrNotStarted before the first
// Start. Both stay readable after Stop.
func (s *Service) components() (*repository.RankStore, dedupe.Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.cache, nil
}

func apply(ctx context.Context, store *repository.RankStore, customerID int64, delta scoring.Score) (scoring.Score, error) {
	score, err := store.ApplyDelta(ctx, customerID, delta)
	if err != nil {
		metrics.RecordScoreUpdate(metrics.OutcomeRejected)
		return scoring.Floor, err
	}
	metrics.RecordScoreUpdate(metrics.OutcomeApplied)
	return score, nil
}

// Apply implements worker.Applier for queued updates.
func (s *Service) Apply(ctx context.Context, u model.ScoreUpdate) (scoring.Score, error) {
	return s.UpdateScore(ctx, u.CustomerID, u.Delta, u.IdempotencyKey)
}

// EnqueueBatch queues updates for asynchronous application in order. It
// stops at the first update the queue refuses and reports how many were
// accepted along with the queue error.
func (s *Service) EnqueueBatch(ctx context.Context, updates []model.ScoreUpdate) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0, ErrNotStarted
	}

	now := time.Now()
	for i := range updates {
		if updates[i].ReceivedAt.IsZero() {
			updates[i].ReceivedAt = now
		}
		if err := s.queue.Enqueue(ctx, updates[i]); err != nil {
			s.logger.Warn(ctx, "batch partially accepted",
				logger.Int("accepted", i),
				logger.Int("submitted", len(updates)),
				logger.Error(err),
			)
			return i, err
		}
	}
	return len(updates), nil
}

// RankRange returns ranks start..end of the current snapshot.
func (s *Service) RankRange(ctx context.Context, start, end int) []types.Entry {
	store, _, err := s.components()
	if err != nil {
		return []types.Entry{}
	}
	return toEntries(store.RankRange(ctx, start, end))
}

// Neighborhood returns the window around a customer's current rank.
func (s *Service) Neighborhood(ctx context.Context, customerID int64, high, low int) []types.Entry {
	store, _, err := s.components()
	if err != nil {
		return []types.Entry{}
	}
	return toEntries(store.Neighborhood(ctx, customerID, high, low))
}

// Customer returns the live score and last assigned rank of a customer.
func (s *Service) Customer(ctx context.Context, customerID int64) (types.Entry, error) {
	store, _, err := s.components()
	if err != nil {
		return types.Entry{}, err
	}
	e, err := store.Lookup(ctx, customerID)
	if err != nil {
		return types.Entry{}, err
	}
	return toEntry(e), nil
}

// Rebuild publishes a snapshot now if the store changed since the last one.
func (s *Service) Rebuild(ctx context.Context) types.RebuildResult {
	store, _, err := s.components()
	if err != nil {
		return types.RebuildResult{}
	}
	ctx, end := tracing.StartSpan(ctx, "service.rebuild")
	defer end(nil)

	rebuilt := store.Rebuild(ctx)
	snap := store.Snapshot()
	return types.RebuildResult{
		Rebuilt:    rebuilt,
		Generation: snap.Generation(),
		Ranked:     snap.Len(),
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"idempotencySize": s.idempotencySize,
		"rebuildInterval": s.rebuildInterval.String(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	snap := s.store.Snapshot()
	customers := s.store.Count(ctx)
	queueLen := s.queue.Len(ctx)

	stats["customers"] = customers
	stats["ranked"] = snap.Len()
	stats["generation"] = snap.Generation()
	if built := snap.BuiltAt(); !built.IsZero() {
		stats["snapshotAgeMs"] = time.Since(built).Milliseconds()
	}
	stats["queueLength"] = queueLen
	stats["processed"] = s.pool.Processed()
	stats["idempotencyEntries"] = s.cache.Size()
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())

	metrics.UpdateCustomersTracked(customers)
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateIdempotencyEntries(s.cache.Size())
	return stats
}

func toEntry(e repository.Entry) types.Entry {
	return types.Entry{
		CustomerID: e.CustomerID,
		Score:      e.Score.Decimal(),
		Rank:       e.Rank,
	}
}

func toEntries(in []repository.Entry) []types.Entry {
	out := make([]types.Entry, len(in))
	for i, e := range in {
		out[i] = toEntry(e)
	}
	return out
}

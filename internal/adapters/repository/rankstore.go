package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/rankboard/internal/domain/scoring"
	"github.com/okian/rankboard/pkg/logger"
	"github.com/okian/rankboard/pkg/metrics"
	"github.com/okian/rankboard/pkg/tracing"
)

// RankStore is a lock-free, in-memory Store.
//
// Writers update one customer record with a CAS loop and never wait on each
// other across ids. A single builder at a time scans the records, sorts them
// and publishes an immutable Snapshot through an atomic pointer. Readers
// load that pointer once per query.
type RankStore struct {
	customers sync.Map // int64 -> *customer
	count     atomic.Int64

	snapshot atomic.Pointer[Snapshot]
	building atomic.Bool
	dirty    atomic.Bool

	rebuildInterval       time.Duration
	metricsUpdateInterval time.Duration

	logger logger.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*RankStore)(nil)

// NewRankStore constructs a store and starts its background builder. The
// goroutines stop when ctx is cancelled or Close is called.
func NewRankStore(ctx context.Context, opts ...Option) *RankStore {
	s := &RankStore{
		rebuildInterval:       100 * time.Millisecond,
		metricsUpdateInterval: 5 * time.Second,
		logger:                logger.Get().Named("rankstore"),
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(emptySnapshot)

	if s.rebuildInterval > 0 {
		s.startPeriodicRebuilds(ctx)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// startPeriodicRebuilds publishes snapshots at the configured interval.
// A tick that finds a rebuild in flight is skipped, never queued.
func (s *RankStore) startPeriodicRebuilds(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.rebuildInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Rebuild(ctx)
			}
		}
	}()
}

func (s *RankStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateCustomersTracked(s.Count(ctx))
			}
		}
	}()
}

// Close stops the background goroutines and waits for them to exit.
func (s *RankStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// ApplyDelta implements Store.ApplyDelta in O(1).
func (s *RankStore) ApplyDelta(_ context.Context, customerID int64, delta scoring.Score) (scoring.Score, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoreUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if customerID <= 0 {
		metrics.RecordError("repository", "invalid_customer_id")
		return scoring.Floor, ErrInvalidCustomerID
	}

	c := s.loadOrCreate(customerID)
	score := c.add(delta)
	if !score.Ranked() {
		c.rank.Store(0)
	}
	s.dirty.Store(true)
	return score, nil
}

// loadOrCreate returns the record for id. Concurrent first writes agree on
// a single record.
func (s *RankStore) loadOrCreate(id int64) *customer {
	if v, ok := s.customers.Load(id); ok {
		return v.(*customer)
	}
	v, loaded := s.customers.LoadOrStore(id, newCustomer(id))
	if !loaded {
		s.count.Add(1)
	}
	return v.(*customer)
}

// Rebuild implements Store.Rebuild. It never blocks: if another rebuild
// holds the builder it returns false at once.
func (s *RankStore) Rebuild(ctx context.Context) bool {
	if !s.building.CompareAndSwap(false, true) {
		metrics.RecordRebuildSkipped(metrics.SkipBusy)
		return false
	}
	defer s.building.Store(false)

	if !s.dirty.Swap(false) {
		metrics.RecordRebuildSkipped(metrics.SkipClean)
		return false
	}

	ctx, end := tracing.StartSpan(ctx, "rankstore.rebuild",
		attribute.Int64("customers", s.count.Load()))
	start := time.Now()
	prev := s.snapshot.Load()

	slots := make([]slot, 0, prev.Len()+prev.Len()/8)
	s.customers.Range(func(_, v any) bool {
		c := v.(*customer)
		score := c.loadScore()
		if score.Ranked() {
			slots = append(slots, slot{rec: c, score: score})
		} else if c.rank.Load() != 0 {
			c.rank.Store(0)
		}
		return true
	})
	sortSlots(slots)
	for i := range slots {
		slots[i].rec.rank.Store(int64(i + 1))
	}

	next := &Snapshot{
		slots:      slots,
		generation: prev.Generation() + 1,
		builtAt:    time.Now(),
	}
	s.snapshot.Store(next)

	elapsed := time.Since(start)
	metrics.RecordRebuild(float64(elapsed.Microseconds())/1000, len(slots), next.generation, next.builtAt.Unix())
	s.logger.Debug(ctx, "snapshot published",
		logger.Uint64("generation", next.generation),
		logger.Int("ranked", len(slots)),
		logger.Duration("took", elapsed),
	)
	end(nil)
	return true
}

// RankRange implements Store.RankRange in O(end-start).
func (s *RankStore) RankRange(_ context.Context, start, end int) []Entry {
	t := time.Now()
	defer recordQuery(metrics.QueryRange, t)

	return rankRange(s.snapshot.Load(), start, end)
}

// Neighborhood implements Store.Neighborhood in O(high+low).
func (s *RankStore) Neighborhood(_ context.Context, customerID int64, high, low int) []Entry {
	t := time.Now()
	defer recordQuery(metrics.QueryNeighborhood, t)

	v, ok := s.customers.Load(customerID)
	if !ok {
		return []Entry{}
	}
	return neighborhood(s.snapshot.Load(), v.(*customer), high, low)
}

// Lookup implements Store.Lookup.
func (s *RankStore) Lookup(_ context.Context, customerID int64) (Entry, error) {
	t := time.Now()
	defer recordQuery(metrics.QueryLookup, t)

	v, ok := s.customers.Load(customerID)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return v.(*customer).entry(), nil
}

// Snapshot implements Store.Snapshot.
func (s *RankStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Count implements Store.Count.
func (s *RankStore) Count(_ context.Context) int {
	return int(s.count.Load())
}

func recordQuery(kind string, start time.Time) {
	metrics.RecordQueryLatency(kind, float64(time.Since(start).Microseconds())/1000)
}

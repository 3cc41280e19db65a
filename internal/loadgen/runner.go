package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/rankboard/pkg/logger"
)

const (
	maxReportedErrors = 5
	spotChecks        = 5
	settleAttempts    = 10
	settleInterval    = 50 * time.Millisecond
)

type counters struct {
	sent, succeeded, rejected, failed atomic.Int64

	mu     sync.Mutex
	errors []string
}

func (c *counters) record(n int64, err error) {
	c.sent.Add(n)
	if err == nil {
		c.succeeded.Add(n)
		return
	}
	var se *StatusError
	if errors.As(err, &se) && se.Status >= http.StatusBadRequest && se.Status < http.StatusInternalServerError {
		c.rejected.Add(n)
	} else {
		c.failed.Add(n)
	}
	c.mu.Lock()
	if len(c.errors) < maxReportedErrors {
		c.errors = append(c.errors, err.Error())
	}
	c.mu.Unlock()
}

// Run sends the generated load, forces a rebuild and verifies the top of the
// board. Request failures are counted, not fatal; verification failures and
// an unreachable server are returned as errors.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	updates := Generate(cfg, rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1)))
	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("updates", len(updates)),
		logger.Int("customers", cfg.Customers),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rate", cfg.Rate),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Int64("seed", seed),
	)

	start := time.Now()
	var c counters
	if err := submit(ctx, client, cfg, updates, &c); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	rb, err := settle(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	top, err := client.Range(ctx, 1, cfg.Top)
	if err != nil {
		return nil, fmt.Errorf("fetch top %d: %w", cfg.Top, err)
	}

	report := &Report{
		Sent:        c.sent.Load(),
		Succeeded:   c.succeeded.Load(),
		Rejected:    c.rejected.Load(),
		Failed:      c.failed.Load(),
		Ranked:      rb.Ranked,
		Generation:  rb.Generation,
		Verified:    len(top),
		Duration:    elapsed,
		Throughput:  float64(c.sent.Load()) / max(elapsed.Seconds(), 1e-9),
		FirstErrors: c.errors,
	}
	log.Info(ctx, "load run finished",
		logger.Int64("sent", report.Sent),
		logger.Int64("succeeded", report.Succeeded),
		logger.Int64("rejected", report.Rejected),
		logger.Int64("failed", report.Failed),
		logger.Duration("took", report.Duration),
		logger.Float64("perSecond", report.Throughput),
		logger.Int("ranked", report.Ranked),
	)
	for _, e := range report.FirstErrors {
		log.Warn(ctx, "request failed", logger.String("error", e))
	}

	if err := Verify(top, 1); err != nil {
		return report, fmt.Errorf("verify top %d: %w", cfg.Top, err)
	}
	// Batched updates may still be applying, so live scores can move past
	// the snapshot.
	if cfg.BatchSize == 0 {
		if err := spotCheck(ctx, client, top); err != nil {
			return report, err
		}
	}
	if cfg.Verbose {
		for _, e := range top {
			log.Info(ctx, "leaderboard",
				logger.Int("rank", e.Rank),
				logger.Int64("customerId", e.CustomerID),
				logger.String("score", e.Score.String()),
			)
		}
	}
	return report, nil
}

func submit(ctx context.Context, client *Client, cfg Config, updates []Update, c *counters) error {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	if cfg.BatchSize > 0 {
		for _, batch := range Batches(updates, cfg.BatchSize) {
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				accepted, err := client.SubmitBatch(gctx, batch)
				if err != nil {
					c.record(int64(accepted), nil)
					c.record(int64(len(batch)-accepted), err)
					return nil
				}
				c.record(int64(accepted), nil)
				return nil
			})
		}
	} else {
		for _, u := range updates {
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				_, err := client.UpdateScore(gctx, u)
				c.record(1, err)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("submit updates: %w", err)
	}
	return nil
}

// settle forces rebuilds until one finds nothing new to publish. A single
// request is not enough: it returns false without building when the
// background builder holds the lock.
func settle(ctx context.Context, client *Client) (RebuildResult, error) {
	prev, err := client.Rebuild(ctx)
	if err != nil {
		return prev, err
	}
	for range settleAttempts {
		select {
		case <-ctx.Done():
			return prev, ctx.Err()
		case <-time.After(settleInterval):
		}
		next, err := client.Rebuild(ctx)
		if err != nil {
			return prev, err
		}
		if !next.Rebuilt && next.Generation == prev.Generation {
			return next, nil
		}
		prev = next
	}
	return prev, nil
}

// spotCheck confirms the first entries agree with single-customer lookups.
func spotCheck(ctx context.Context, client *Client, top []Entry) error {
	for _, e := range top[:min(spotChecks, len(top))] {
		got, err := client.Customer(ctx, e.CustomerID)
		if err != nil {
			return fmt.Errorf("lookup customer %d: %w", e.CustomerID, err)
		}
		if !got.Score.Equal(e.Score) || got.Rank != e.Rank {
			return fmt.Errorf("customer %d: lookup (%s, #%d) disagrees with board (%s, #%d)",
				e.CustomerID, got.Score, got.Rank, e.Score, e.Rank)
		}
	}
	return nil
}

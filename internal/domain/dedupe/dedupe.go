// Package dedupe remembers the outcome of idempotent score updates so that a
// retried request returns the original result instead of applying twice.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/rankboard/internal/domain/scoring"
)

// MaxKeyLength bounds the size of an idempotency key in bytes.
const MaxKeyLength = 64

// Cache maps idempotency keys to the score their update produced.
type Cache interface {
	// Lookup returns the recorded score for key.
	Lookup(ctx context.Context, key string) (scoring.Score, bool)

	// Record stores the score for key. Recording an existing key keeps the
	// first score.
	Record(ctx context.Context, key string, score scoring.Score)

	Size() int64
}

// ValidateKey reports whether key can be used. The empty key means the
// request is not idempotent and is always valid.
func ValidateKey(key string) error {
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %d bytes, max %d", ErrKeyTooLong, len(key), MaxKeyLength)
	}
	return nil
}

// inMemoryCache implements Cache with a map and, in bounded mode, a ring of
// keys in insertion order for FIFO eviction.
type inMemoryCache struct {
	mu      sync.RWMutex
	scores  map[string]scoring.Score
	ring    []string // bounded mode only
	next    int      // ring slot written next
	maxSize int      // 0 or negative = UNBOUNDED
	size    atomic.Int64
}

// NewInMemoryCache creates a new in-memory cache with configuration options.
func NewInMemoryCache(opts ...Option) Cache {
	c := &inMemoryCache{
		maxSize: 50000, // default max size
	}
	for _, opt := range opts {
		opt(c)
	}
	c.scores = make(map[string]scoring.Score)
	if c.maxSize > 0 {
		c.ring = make([]string, c.maxSize)
	}
	return c
}

func (c *inMemoryCache) Lookup(_ context.Context, key string) (scoring.Score, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scores[key]
	return s, ok
}

func (c *inMemoryCache) Record(_ context.Context, key string, score scoring.Score) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.scores[key]; exists {
		return
	}
	if c.maxSize > 0 {
		// The slot about to be overwritten holds the oldest key once full.
		if old := c.ring[c.next]; old != "" {
			delete(c.scores, old)
			c.size.Add(-1)
		}
		c.ring[c.next] = key
		c.next = (c.next + 1) % c.maxSize
	}
	c.scores[key] = score
	c.size.Add(1)
}

func (c *inMemoryCache) Size() int64 {
	return c.size.Load()
}

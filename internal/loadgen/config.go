// Package loadgen drives concurrent score updates against a running
// rankboard server and checks the published leaderboard afterwards.
package loadgen

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid loadgen config")

// Config holds configuration for a load run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Updates   int           // Number of score updates to send
	Customers int           // Customer ids are drawn from 1..Customers
	Workers   int           // Concurrent in-flight requests
	Rate      float64       // Requests per second; 0 means unpaced
	BatchSize int           // Updates per /scores/batch request; 0 sends single updates
	Top       int           // Size of the window verified at the end
	Timeout   time.Duration // Per-request timeout
	Seed      int64         // Generator seed; 0 picks one from the clock
	Verbose   bool
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Updates < 1:
		return fmt.Errorf("%w: updates must be >= 1", ErrInvalidConfig)
	case c.Customers < 1:
		return fmt.Errorf("%w: customers must be >= 1", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1", ErrInvalidConfig)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must be >= 0", ErrInvalidConfig)
	case c.BatchSize < 0:
		return fmt.Errorf("%w: batch size must be >= 0", ErrInvalidConfig)
	case c.Top < 1:
		return fmt.Errorf("%w: top must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// Update is one generated score update.
type Update struct {
	CustomerID     int64  `json:"customerId"`
	Delta          string `json:"delta"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Entry is a leaderboard row as served over HTTP.
type Entry struct {
	CustomerID int64           `json:"customerId"`
	Score      decimal.Decimal `json:"score"`
	Rank       int             `json:"rank"`
}

// Report summarises a run.
type Report struct {
	Sent        int64
	Succeeded   int64
	Rejected    int64
	Failed      int64
	Ranked      int
	Generation  uint64
	Verified    int
	Duration    time.Duration
	Throughput  float64
	FirstErrors []string
}

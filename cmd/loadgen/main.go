// Command loadgen fires concurrent score updates at a rankboard server and
// verifies the leaderboard it publishes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/rankboard/internal/loadgen"
	"github.com/okian/rankboard/pkg/logger"
)

// Default configuration constants.
const (
	defaultUpdates   = 10000
	defaultCustomers = 1000
	defaultTop       = 50
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 10 * time.Second
	defaultDeadline  = 10 * time.Minute
)

func newRootCmd() *cobra.Command {
	cfg := loadgen.Config{}
	var (
		deadline  time.Duration
		logFormat string
	)

	cmd := &cobra.Command{
		Use:          "loadgen",
		Short:        "Send concurrent score updates to rankboard and verify the leaderboard",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
			defer cancel()

			report, err := loadgen.Run(ctx, cfg)
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.IntVar(&cfg.Updates, "updates", defaultUpdates, "number of score updates to send")
	f.IntVar(&cfg.Customers, "customers", defaultCustomers, "customer ids are drawn from 1..N")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "concurrent in-flight requests")
	f.Float64Var(&cfg.Rate, "rate", 0, "requests per second (0 = unpaced)")
	f.IntVar(&cfg.BatchSize, "batch", 0, "updates per /scores/batch request (0 = single updates)")
	f.IntVar(&cfg.Top, "top", defaultTop, "size of the leaderboard window to verify")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "per-request timeout")
	f.Int64Var(&cfg.Seed, "seed", 0, "generator seed (0 = from clock)")
	f.BoolVar(&cfg.Verbose, "verbose", false, "log the verified window")
	f.DurationVar(&deadline, "deadline", defaultDeadline, "overall deadline for the run")
	f.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	return cmd
}

func printReport(cmd *cobra.Command, r *loadgen.Report) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "sent %d  ok %d  rejected %d  failed %d  in %s (%.0f/s)\n",
		r.Sent, r.Succeeded, r.Rejected, r.Failed, r.Duration.Round(time.Millisecond), r.Throughput)
	_, _ = fmt.Fprintf(out, "snapshot generation %d, %d ranked, top %d verified\n",
		r.Generation, r.Ranked, r.Verified)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kylin1020/spinneret/internal/scheduler"
	"github.com/kylin1020/spinneret/internal/store"
)

// Runner drains a scheduler's item queue into an Exporter. Pointing it
// at a Redis-backed scheduler turns any process into an export consumer
// for a crawl running elsewhere.
type Runner struct {
	sched    *scheduler.Scheduler
	exporter Exporter
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner returns a Runner moving items from sched to exporter.
func NewRunner(sched *scheduler.Scheduler, exporter Exporter, opts ...RunnerOption) *Runner {
	r := &Runner{
		sched:    sched,
		exporter: exporter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DrainOnce exports queued items until the queue is empty, then flushes
// the exporter. It returns the number of items exported. Cancellation
// stops the drain after the current item; already-exported items are
// flushed before returning.
func (r *Runner) DrainOnce(ctx context.Context) (int, error) {
	exported := 0
	for {
		select {
		case <-ctx.Done():
			if err := r.exporter.Flush(); err != nil {
				return exported, fmt.Errorf("flush exporter: %w", err)
			}
			return exported, ctx.Err()
		default:
		}

		item, err := r.sched.NextItem(ctx)
		if errors.Is(err, store.ErrEmpty) {
			if err := r.exporter.Flush(); err != nil {
				return exported, fmt.Errorf("flush exporter: %w", err)
			}
			return exported, nil
		}
		if err != nil {
			return exported, fmt.Errorf("pop item: %w", err)
		}

		if err := r.exporter.Export(ctx, item); err != nil {
			return exported, fmt.Errorf("export item: %w", err)
		}
		exported++
	}
}

// Run polls the item queue at the given interval until the context is
// cancelled, draining whatever has accumulated on each tick. It returns
// the context's error after a final drain.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.DrainOnce(ctx)
		if n > 0 {
			r.logger.Info("exported items", "count", n)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

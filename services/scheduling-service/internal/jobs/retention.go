// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes rows older than cutoff and reports how many went away.
type Pruner func(ctx context.Context, cutoff time.Time) (int64, error)

// Target is one table swept by the retention job.
type Target struct {
	Name  string
	Keep  time.Duration
	Prune Pruner
}

type Retention struct {
	logger   *slog.Logger
	targets  []Target
	timeout  time.Duration
	now      func() time.Time
	onPruned func(table string, rows int64)
}

type RetentionConfig struct {
	Timeout time.Duration
	// OnPruned, if set, observes rows removed per table.
	OnPruned func(table string, rows int64)
}

func NewRetention(logger *slog.Logger, cfg RetentionConfig, targets ...Target) *Retention {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Retention{
		logger:   logger,
		targets:  targets,
		timeout:  cfg.Timeout,
		now:      time.Now,
		onPruned: cfg.OnPruned,
	}
}

// RunOnce sweeps every target; a failing target does not stop the others.
func (r *Retention) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, t := range r.targets {
		if t.Keep <= 0 || t.Prune == nil {
			continue
		}
		cutoff := r.now().Add(-t.Keep)
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		n, err := t.Prune(runCtx, cutoff)
		cancel()
		if err != nil {
			r.logger.Error("retention sweep failed", "table", t.Name, "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("retention %s: %w", t.Name, err)
			}
			continue
		}
		if r.onPruned != nil {
			r.onPruned(t.Name, n)
		}
		r.logger.Info("retention sweep", "table", t.Name, "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return firstErr
}

// Start schedules RunOnce with a standard five-field cron spec and stops the
// scheduler when ctx ends. An empty spec disables the job.
func (r *Retention) Start(ctx context.Context, spec string) error {
	if spec == "" {
		r.logger.Warn("retention job disabled (no schedule configured)")
		return nil
	}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, func() { _ = r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	r.logger.Info("retention job scheduled", "spec", spec)
	return nil
}

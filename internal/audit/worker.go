package audit

import (
	"context"
	"log/slog"
	"time"

	"dgtt/pkg/requestcontext"
)

// Purger is the slice of Service the retention worker needs.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeWorker deletes entries older than the retention period on a fixed
// interval. It only touches rows older than the cutoff, so it runs alongside
// inserts without coordination.
type PurgeWorker struct {
	purger    Purger
	retention time.Duration
	interval  time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

type PurgeWorkerOption func(*PurgeWorker)

func WithPurgeClock(clock func() time.Time) PurgeWorkerOption {
	return func(w *PurgeWorker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

func WithPurgeLogger(logger *slog.Logger) PurgeWorkerOption {
	return func(w *PurgeWorker) {
		w.logger = logger
	}
}

func NewPurgeWorker(purger Purger, retention, interval time.Duration, opts ...PurgeWorkerOption) *PurgeWorker {
	w := &PurgeWorker{
		purger:    purger,
		retention: retention,
		interval:  interval,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run purges once immediately, then on every tick until ctx is done.
func (w *PurgeWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge pass. Failures are logged and retried on
// the next tick.
func (w *PurgeWorker) RunOnce(ctx context.Context) int64 {
	now := w.clock()
	cutoff := now.Add(-w.retention)
	removed, err := w.purger.Purge(requestcontext.WithTime(ctx, now), cutoff)
	if err != nil {
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "audit purge failed", "error", err, "cutoff", cutoff)
		}
		return 0
	}
	return removed
}

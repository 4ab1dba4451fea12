package scheduler

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/metrics"
	"github.com/muaviaUsmani/adhan/internal/reconcile"
)

// Skip reasons reported by the guard
const (
	SkipCoalesced = "coalesced into running pass"
	SkipLocked    = "pass running in another process"
	SkipLockError = "pass lock unavailable"
)

// Runner runs one reconciliation pass
type Runner interface {
	Run(ctx context.Context, trigger string) (reconcile.Report, error)
}

// Firer requests a pass for a trigger
type Firer interface {
	Fire(ctx context.Context, trigger Trigger) (reconcile.Report, error)
}

// Guard makes sure only one pass runs at a time. Within the process a trigger
// arriving during a pass is coalesced: the running caller does one more pass
// for it when the current one ends. Across processes passes take a Redis lock;
// a pass that cannot get it is skipped.
type Guard struct {
	runner  Runner
	locker  *Locker
	log     logger.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	running bool
	pending Trigger
}

// NewGuard wraps runner. locker may be nil to skip cross-process locking.
func NewGuard(runner Runner, locker *Locker) *Guard {
	return &Guard{
		runner:  runner,
		locker:  locker,
		log:     logger.Default().WithComponent(logger.ComponentScheduler),
		metrics: metrics.Default(),
	}
}

// SetMetrics replaces the collector skipped passes are recorded in
func (g *Guard) SetMetrics(c *metrics.Collector) {
	g.metrics = c
}

// Running reports whether a pass is in flight in this process
func (g *Guard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Fire runs a pass for trigger, or coalesces it into the pass already running.
// The report is that of the last pass this call ran.
func (g *Guard) Fire(ctx context.Context, trigger Trigger) (reconcile.Report, error) {
	g.mu.Lock()
	if g.running {
		g.pending = trigger
		g.mu.Unlock()
		g.log.DebugContext(ctx, "Pass in flight, trigger coalesced", "trigger", string(trigger))
		return g.skipped(trigger, SkipCoalesced), nil
	}
	g.running = true
	g.mu.Unlock()

	for {
		report, err := g.runOnce(ctx, trigger)

		g.mu.Lock()
		next := g.pending
		g.pending = ""
		if next == "" || ctx.Err() != nil {
			g.running = false
			g.mu.Unlock()
			return report, err
		}
		g.mu.Unlock()

		trigger = next
	}
}

func (g *Guard) runOnce(ctx context.Context, trigger Trigger) (report reconcile.Report, err error) {
	if g.locker != nil {
		lease, lockErr := g.locker.TryAcquire(ctx)
		if lockErr != nil {
			g.log.ErrorContext(ctx, "Failed to take pass lock", "trigger", string(trigger), "error", lockErr)
			return g.skipped(trigger, SkipLockError), nil
		}
		if lease == nil {
			g.log.DebugContext(ctx, "Pass lock held by another instance", "trigger", string(trigger))
			return g.skipped(trigger, SkipLocked), nil
		}
		defer func() {
			if err := lease.Release(ctx); err != nil {
				g.log.WarnContext(ctx, "Failed to release pass lock", "error", err)
			}
		}()
	}

	defer func() {
		if perr := apperrors.Recover(recover()); perr != nil {
			g.log.ErrorContext(ctx, "Reconciliation pass panicked", "trigger", string(trigger),
				"panic", apperrors.FormatPanicForLog(perr))
			report = reconcile.Report{Trigger: string(trigger)}
			err = perr
		}
	}()

	return g.runner.Run(ctx, string(trigger))
}

func (g *Guard) skipped(trigger Trigger, reason string) reconcile.Report {
	g.metrics.RecordPassStarted(string(trigger))
	g.metrics.RecordPassFinished(metrics.OutcomeSkipped, 0)
	return reconcile.Report{
		Trigger:    string(trigger),
		Skipped:    true,
		SkipReason: reason,
	}
}

// FireAsync fires trigger on a new goroutine, logging the outcome
func (g *Guard) FireAsync(ctx context.Context, trigger Trigger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		start := time.Now()
		report, err := g.Fire(ctx, trigger)
		if err != nil {
			g.log.ErrorContext(ctx, "Reconciliation pass failed", "trigger", string(trigger), "error", err)
			return
		}
		g.log.DebugContext(ctx, "Trigger handled",
			"trigger", string(trigger),
			"skipped", report.Skipped,
			"elapsed", time.Since(start))
	}()
	return done
}

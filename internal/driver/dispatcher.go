package driver

import (
	"context"
	"time"

	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/metrics"
)

// DuePopper is the part of a driver the dispatcher needs
type DuePopper interface {
	PopDue(ctx context.Context, now time.Time) ([]ScheduledItem, error)
}

// Dispatcher polls for due alarms and hands them to notifiers
type Dispatcher struct {
	source    DuePopper
	notifiers *Registry
	interval  time.Duration
	now       func() time.Time
	log       logger.Logger
	metrics   *metrics.Collector
}

// NewDispatcher creates a dispatcher polling source every interval
func NewDispatcher(source DuePopper, notifiers *Registry, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{
		source:    source,
		notifiers: notifiers,
		interval:  interval,
		now:       time.Now,
		log:       logger.Default().WithComponent(logger.ComponentDispatcher),
		metrics:   metrics.Default(),
	}
}

// SetClock replaces the dispatcher's notion of now (for tests)
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// SetMetrics replaces the collector fired alarms are recorded in
func (d *Dispatcher) SetMetrics(c *metrics.Collector) {
	d.metrics = c
}

// Start runs the dispatch loop until ctx is cancelled
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("Dispatcher ready - monitoring scheduled alarms", "interval", d.interval)

	for {
		select {
		case <-ticker.C:
			count, err := d.DispatchDue(ctx)
			if err != nil {
				d.log.Error("Error dispatching due alarms", "error", err)
			}
			if count > 0 {
				d.log.Info("Dispatched due alarms", "count", count)
			}

		case <-ctx.Done():
			d.log.Info("Dispatcher stopping")
			return
		}
	}
}

// DispatchDue claims every due alarm and notifies it. Notifier failures are
// logged; the alarm is not retried. Returns the number of alarms claimed.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	items, err := d.source.PopDue(ctx, d.now())
	if err != nil {
		return 0, err
	}

	for _, item := range items {
		if err := d.notifiers.Notify(ctx, item); err != nil {
			d.log.ErrorContext(ctx, "Notifier failed",
				"alarm_id", item.ID,
				"event", item.Payload.EventName,
				"error", err)
			continue
		}
		d.metrics.RecordAlarmFired(item.Payload.EventName)
	}
	return len(items), nil
}

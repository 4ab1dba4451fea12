// Package reconcile brings the driver's live alarms in line with the alarms
// that should exist for the current time, preferences and event times.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/muaviaUsmani/adhan/internal/alarm"
	"github.com/muaviaUsmani/adhan/internal/driver"
	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/metrics"
	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/timetable"
)

// Skip reasons reported when a pass exits before touching the driver
const (
	SkipDriverUnavailable = "driver unavailable"
	SkipNoEventData       = "no event data"
	SkipDriverListFailed  = "driver list failed"
)

// PreferenceSource supplies the current alarm preferences
type PreferenceSource interface {
	Load(ctx context.Context) (prayer.Preferences, error)
}

// Report describes what one pass did
type Report struct {
	PassID     string `json:"pass_id"`
	Trigger    string `json:"trigger"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`

	Desired        int         `json:"desired"`
	Kept           int         `json:"kept"`
	Cancelled      []string    `json:"cancelled"`
	CancelFailed   []string    `json:"cancel_failed"`
	Scheduled      alarm.IDMap `json:"scheduled"`
	Refused        []alarm.Key `json:"refused"`
	ScheduleFailed []alarm.Key `json:"schedule_failed"`
	Stored         int         `json:"stored"`
	StoreFailed    bool        `json:"store_failed"`

	Duration time.Duration `json:"duration"`
}

// Reconciler runs reconciliation passes. It does not serialize passes itself;
// callers must not run two passes at once against the same storage.
type Reconciler struct {
	provider  timetable.Provider
	prefs     PreferenceSource
	ids       *alarm.IDStore
	driver    driver.Driver
	available bool

	location prayer.Location
	tz       *time.Location

	now     func() time.Time
	log     logger.Logger
	metrics *metrics.Collector
}

// New creates a reconciler. Driver availability is checked once, here.
func New(provider timetable.Provider, prefs PreferenceSource, ids *alarm.IDStore, d driver.Driver, loc prayer.Location, tz *time.Location) *Reconciler {
	if tz == nil {
		tz = time.UTC
	}
	r := &Reconciler{
		provider:  provider,
		prefs:     prefs,
		ids:       ids,
		driver:    d,
		available: driver.Available(d),
		location:  loc,
		tz:        tz,
		now:       time.Now,
		log:       logger.Default().WithComponent(logger.ComponentReconciler),
		metrics:   metrics.Default(),
	}
	if !r.available {
		r.log.Warn("Alarm driver is unavailable, reconciliation passes will be no-ops")
	}
	return r
}

// SetClock replaces the reconciler's notion of now (for tests)
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// SetMetrics replaces the collector passes are recorded in
func (r *Reconciler) SetMetrics(c *metrics.Collector) {
	r.metrics = c
}

// Available reports whether passes will do anything
func (r *Reconciler) Available() bool {
	return r.available
}

// Run executes one pass. Collaborator failures are logged and the pass goes on
// with what it has; err is only set when the pass panicked.
func (r *Reconciler) Run(ctx context.Context, trigger string) (report Report, err error) {
	start := time.Now()
	report = Report{
		PassID:    uuid.New().String(),
		Trigger:   trigger,
		Scheduled: alarm.IDMap{},
	}
	ctx = logger.WithPass(ctx, report.PassID, trigger)
	r.metrics.RecordPassStarted(trigger)

	defer func() {
		report.Duration = time.Since(start)
		outcome := metrics.OutcomeCompleted
		if perr := apperrors.Recover(recover()); perr != nil {
			r.log.ErrorContext(ctx, "Reconciliation pass panicked", "panic", apperrors.FormatPanicForLog(perr))
			err = perr
			outcome = metrics.OutcomeFailed
		} else if report.Skipped {
			outcome = metrics.OutcomeSkipped
		}
		r.metrics.RecordPassFinished(outcome, report.Duration)
	}()

	if !r.available {
		r.skip(ctx, &report, SkipDriverUnavailable)
		return report, nil
	}

	now := r.now().In(r.tz)

	items, ok := r.desiredItems(ctx, now)
	if !ok {
		r.skip(ctx, &report, SkipNoEventData)
		return report, nil
	}
	desired := alarm.DesiredKeys(items)
	report.Desired = len(desired)

	stored, loadErr := r.ids.LoadAndCleanup(ctx, now)
	if loadErr != nil {
		r.log.WarnContext(ctx, "Failed to load alarm ids, continuing without them", "error", loadErr)
	}

	live, listErr := r.driver.ListScheduled(ctx)
	if listErr != nil {
		r.log.ErrorContext(ctx, "Failed to list scheduled alarms", "error", listErr)
		r.skip(ctx, &report, SkipDriverListFailed)
		return report, nil
	}

	scheduled := make([]alarm.ScheduledAlarm, len(live))
	for i, item := range live {
		scheduled[i] = alarm.ScheduledAlarm{
			ID:  item.ID,
			Key: alarm.DeriveKey(item.Payload.EventName, item.Payload.Kind, item.TriggerAt),
		}
	}

	plan := alarm.PlanSync(desired, stored, scheduled)
	report.Kept = len(plan.KeyToID)

	for _, id := range plan.IDsToCancel {
		if err := r.driver.Cancel(ctx, id); err != nil {
			r.log.WarnContext(ctx, "Failed to cancel alarm", "alarm_id", id, "error", err)
			report.CancelFailed = append(report.CancelFailed, id)
			continue
		}
		report.Cancelled = append(report.Cancelled, id)
	}

	for _, item := range items {
		if _, kept := plan.KeyToID[item.Key]; kept {
			continue
		}

		id, err := r.driver.ScheduleAt(ctx, item.Time, driver.Payload{
			EventName: string(item.Event),
			Kind:      alarm.PayloadKind,
		})
		switch {
		case errors.Is(err, driver.ErrPastDue):
			r.log.DebugContext(ctx, "Alarm instant already passed, not scheduled", "alarm_key", string(item.Key))
			report.Refused = append(report.Refused, item.Key)
		case err != nil:
			r.log.WarnContext(ctx, "Failed to schedule alarm", "alarm_key", string(item.Key), "error", err)
			report.ScheduleFailed = append(report.ScheduleFailed, item.Key)
		default:
			report.Scheduled[item.Key] = id
		}
	}

	final := alarm.Merge(plan.KeyToID, nil, report.Scheduled)
	report.Stored = len(final)
	if err := r.ids.Save(ctx, final); err != nil {
		r.log.ErrorContext(ctx, "Failed to save alarm ids", "error", err)
		report.StoreFailed = true
		r.metrics.RecordStoreFailure()
	}

	r.record(report)
	r.log.InfoContext(ctx, "Reconciliation pass finished",
		"desired", report.Desired,
		"kept", report.Kept,
		"cancelled", len(report.Cancelled),
		"scheduled", len(report.Scheduled),
		"refused", len(report.Refused),
		"failed", len(report.CancelFailed)+len(report.ScheduleFailed))
	return report, nil
}

// desiredItems fetches today and tomorrow and computes the schedule. ok is
// false when neither day could be fetched.
func (r *Reconciler) desiredItems(ctx context.Context, now time.Time) ([]alarm.Item, bool) {
	today := r.fetchDay(ctx, now)
	tomorrow := r.fetchDay(ctx, now.AddDate(0, 0, 1))
	if today == nil && tomorrow == nil {
		return nil, false
	}

	prefs, err := r.prefs.Load(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to load preferences, using defaults", "error", err)
	}
	if prefs == nil {
		prefs = prayer.DefaultPreferences()
	}

	return alarm.CalculateSchedule(now, today, tomorrow, prefs), true
}

func (r *Reconciler) fetchDay(ctx context.Context, date time.Time) *prayer.DayEvents {
	day, err := r.provider.GetEvents(ctx, date, r.location)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to fetch event times",
			"date", date.Format(timetable.DateLayout),
			"error", err)
		return nil
	}
	return day
}

func (r *Reconciler) skip(ctx context.Context, report *Report, reason string) {
	report.Skipped = true
	report.SkipReason = reason
	r.log.InfoContext(ctx, "Reconciliation pass skipped", "reason", reason)
}

func (r *Reconciler) record(report Report) {
	r.metrics.RecordAlarmsKept(report.Kept)
	r.metrics.RecordAlarmsCancelled(len(report.Cancelled))
	r.metrics.RecordCancelFailures(len(report.CancelFailed))
	r.metrics.RecordAlarmsScheduled(len(report.Scheduled))
	r.metrics.RecordAlarmsRefused(len(report.Refused))
	r.metrics.RecordScheduleFailures(len(report.ScheduleFailed))
	r.metrics.RecordManagedAlarms(report.Stored)
}

// Package scheduler decides when reconciliation passes run: cron schedules for
// the midnight rollover and periodic refresh, a pub/sub listener for client
// requests, and the guard that keeps passes from overlapping.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/redis/go-redis/v9"
)

// CronScheduler fires the triggers of registered schedules when they are due
type CronScheduler struct {
	registry  *Registry
	firer     Firer
	client    *redis.Client
	keyPrefix string
	interval  time.Duration
	lockTTL   time.Duration
	now       func() time.Time
	log       logger.Logger
}

// NewCronScheduler creates a cron scheduler checking schedules every interval
func NewCronScheduler(registry *Registry, firer Firer, client *redis.Client, prefix string, interval time.Duration) *CronScheduler {
	return &CronScheduler{
		registry:  registry,
		firer:     firer,
		client:    client,
		keyPrefix: prefix,
		interval:  interval,
		lockTTL:   60 * time.Second, // Default: 60s lock TTL
		now:       time.Now,
		log:       logger.Default().WithComponent(logger.ComponentScheduler),
	}
}

// SetLockTTL sets the per-schedule lock TTL (for testing or tuning)
func (cs *CronScheduler) SetLockTTL(ttl time.Duration) {
	cs.lockTTL = ttl
}

// SetClock replaces the scheduler's notion of now (for tests)
func (cs *CronScheduler) SetClock(now func() time.Time) {
	cs.now = now
}

// Start begins the cron scheduler loop
func (cs *CronScheduler) Start(ctx context.Context) {
	cs.log.Info("Cron scheduler started",
		"interval", cs.interval,
		"schedules", cs.registry.Count())

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.log.Info("Cron scheduler stopping")
			return
		case <-ticker.C:
			cs.tick(ctx)
		}
	}
}

// tick fires every due schedule
func (cs *CronScheduler) tick(ctx context.Context) {
	now := cs.now()

	for _, schedule := range cs.registry.List() {
		if !schedule.Enabled {
			continue
		}
		if cs.isDue(ctx, schedule, now) {
			cs.executeSchedule(ctx, schedule, now)
		}
	}
}

// isDue checks if a schedule should fire now. A schedule seen for the first
// time starts counting from now rather than firing immediately.
func (cs *CronScheduler) isDue(ctx context.Context, schedule *Schedule, now time.Time) bool {
	state, err := cs.getState(ctx, schedule.ID)
	if err != nil {
		cs.log.Error("Failed to get schedule state",
			"schedule_id", schedule.ID,
			"error", err)
		return false
	}

	if state.LastRun.IsZero() {
		nextRun, err := cs.registry.NextRun(schedule, now)
		if err != nil {
			cs.log.Error("Failed to calculate next run", "schedule_id", schedule.ID, "error", err)
			return false
		}
		if err := cs.updateState(ctx, schedule.ID, &ScheduleState{LastRun: now, NextRun: nextRun}); err != nil {
			cs.log.Warn("Failed to initialize schedule state", "schedule_id", schedule.ID, "error", err)
		}
		return false
	}

	nextRun, err := cs.registry.NextRun(schedule, state.LastRun)
	if err != nil {
		cs.log.Error("Failed to calculate next run",
			"schedule_id", schedule.ID,
			"error", err)
		return false
	}

	// Use 1-second buffer to account for tick timing
	return !now.Before(nextRun.Add(-1 * time.Second))
}

// executeSchedule fires a schedule's trigger under a per-schedule lock, so
// one instance fires it per occurrence
func (cs *CronScheduler) executeSchedule(ctx context.Context, schedule *Schedule, now time.Time) {
	lease, err := NewLocker(cs.client, cs.key("schedule_lock", schedule.ID), cs.lockTTL).TryAcquire(ctx)
	if err != nil {
		cs.log.Error("Failed to acquire schedule lock",
			"schedule_id", schedule.ID,
			"error", err)
		return
	}
	if lease == nil {
		cs.log.Debug("Schedule already locked by another instance",
			"schedule_id", schedule.ID)
		return
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			cs.log.Error("Failed to release schedule lock",
				"schedule_id", schedule.ID,
				"error", err)
		}
	}()

	nextRun, nextErr := cs.registry.NextRun(schedule, now)
	if nextErr != nil {
		cs.log.Error("Failed to calculate next run time",
			"schedule_id", schedule.ID,
			"error", nextErr)
	}

	report, err := cs.firer.Fire(ctx, schedule.Trigger)
	if err != nil {
		cs.log.Error("Scheduled reconciliation failed",
			"schedule_id", schedule.ID,
			"trigger", string(schedule.Trigger),
			"error", err)

		if updateErr := cs.updateState(ctx, schedule.ID, &ScheduleState{
			LastRun:   now,
			NextRun:   nextRun,
			LastError: err.Error(),
		}); updateErr != nil {
			cs.log.Warn("Failed to update schedule state", "schedule_id", schedule.ID, "error", updateErr)
		}
		return
	}

	cs.log.Info("Scheduled trigger fired",
		"schedule_id", schedule.ID,
		"trigger", string(schedule.Trigger),
		"pass_id", report.PassID,
		"skipped", report.Skipped)

	runCount := cs.incrementRunCount(ctx, schedule.ID)
	if updateErr := cs.updateState(ctx, schedule.ID, &ScheduleState{
		LastRun:     now,
		NextRun:     nextRun,
		LastSuccess: now,
		RunCount:    runCount,
	}); updateErr != nil {
		cs.log.Warn("Failed to update schedule state", "schedule_id", schedule.ID, "error", updateErr)
	}

	cs.log.Debug("Schedule state updated",
		"schedule_id", schedule.ID,
		"next_run", nextRun.Format(time.RFC3339),
		"run_count", runCount)
}

func (cs *CronScheduler) key(kind, scheduleID string) string {
	return fmt.Sprintf("%s%s:%s", cs.keyPrefix, kind, scheduleID)
}

// getState retrieves the current state of a schedule from Redis
func (cs *CronScheduler) getState(ctx context.Context, scheduleID string) (*ScheduleState, error) {
	result, err := cs.client.HGetAll(ctx, cs.key("schedules", scheduleID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule state: %w", err)
	}

	state := &ScheduleState{ID: scheduleID}
	parseTime := func(field string) time.Time {
		parsed, err := time.Parse(time.RFC3339, result[field])
		if err != nil {
			return time.Time{}
		}
		return parsed
	}

	state.LastRun = parseTime("last_run")
	state.NextRun = parseTime("next_run")
	state.LastSuccess = parseTime("last_success")
	state.LastError = result["last_error"]
	if count, err := strconv.ParseInt(result["run_count"], 10, 64); err == nil {
		state.RunCount = count
	}

	return state, nil
}

// updateState updates the schedule state in Redis
func (cs *CronScheduler) updateState(ctx context.Context, scheduleID string, state *ScheduleState) error {
	key := cs.key("schedules", scheduleID)

	fields := map[string]interface{}{
		"last_run": state.LastRun.Format(time.RFC3339),
	}
	if !state.NextRun.IsZero() {
		fields["next_run"] = state.NextRun.Format(time.RFC3339)
	}
	if !state.LastSuccess.IsZero() {
		fields["last_success"] = state.LastSuccess.Format(time.RFC3339)
	}

	pipe := cs.client.TxPipeline()
	if state.LastError != "" {
		fields["last_error"] = state.LastError
	} else {
		pipe.HDel(ctx, key, "last_error")
	}
	pipe.HSet(ctx, key, fields)
	_, err := pipe.Exec(ctx)
	return err
}

// incrementRunCount increments and returns the run count
func (cs *CronScheduler) incrementRunCount(ctx context.Context, scheduleID string) int64 {
	count, err := cs.client.HIncrBy(ctx, cs.key("schedules", scheduleID), "run_count", 1).Result()
	if err != nil {
		cs.log.Error("Failed to increment run count",
			"schedule_id", scheduleID,
			"error", err)
		return 0
	}
	return count
}

// GetState retrieves the current state of a schedule (public method for monitoring)
func (cs *CronScheduler) GetState(ctx context.Context, scheduleID string) (*ScheduleState, error) {
	return cs.getState(ctx, scheduleID)
}

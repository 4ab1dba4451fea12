package scheduler

import (
	"fmt"
	"time"
)

// Trigger names why a reconciliation pass was requested
type Trigger string

const (
	// TriggerStartup fires once when the daemon starts
	TriggerStartup Trigger = "startup"
	// TriggerMidnight fires at the local day rollover
	TriggerMidnight Trigger = "midnight"
	// TriggerRefresh fires periodically to catch drift
	TriggerRefresh Trigger = "refresh"
	// TriggerForeground is requested by a client coming to the foreground
	TriggerForeground Trigger = "foreground"
	// TriggerPreferences is requested after a preference toggle
	TriggerPreferences Trigger = "preferences"
)

var knownTriggers = map[Trigger]bool{
	TriggerStartup:     true,
	TriggerMidnight:    true,
	TriggerRefresh:     true,
	TriggerForeground:  true,
	TriggerPreferences: true,
}

// ParseTrigger validates a trigger name
func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(s)
	if !knownTriggers[t] {
		return "", fmt.Errorf("unknown trigger %q", s)
	}
	return t, nil
}

// Schedule fires a trigger on a cron expression
type Schedule struct {
	// ID is a unique identifier for the schedule
	ID string

	// Cron expression (standard 5-field: minute hour day month weekday)
	// Examples:
	//   "0 0 * * *"     - Every day at midnight
	//   "*/30 * * * *"  - Every 30 minutes
	Cron string

	// Trigger the schedule fires
	Trigger Trigger

	// Timezone for cron evaluation (default: UTC)
	// Must be a valid IANA timezone (e.g., "Asia/Karachi", "UTC")
	Timezone string

	// Enabled flag (allows disabling without removing)
	Enabled bool

	// Description for logging/monitoring
	Description string
}

// ScheduleState represents the runtime state of a schedule
type ScheduleState struct {
	ID          string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	LastError   string
	LastSuccess time.Time
}

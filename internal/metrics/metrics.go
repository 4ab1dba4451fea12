package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector instance
var (
	globalCollector *Collector
	once            sync.Once
)

// PassOutcome is how a reconciliation pass ended
type PassOutcome string

const (
	// OutcomeCompleted means the pass ran to the end (individual failures may have been logged)
	OutcomeCompleted PassOutcome = "completed"
	// OutcomeSkipped means the pass exited early with nothing to do or nothing it could do
	OutcomeSkipped PassOutcome = "skipped"
	// OutcomeFailed means the pass was aborted by an unexpected error
	OutcomeFailed PassOutcome = "failed"
)

// Collector tracks reconciliation and dispatch metrics in memory
type Collector struct {
	// Counters (atomic for thread-safety)
	totalPasses      atomic.Int64
	alarmsScheduled  atomic.Int64
	alarmsCancelled  atomic.Int64
	alarmsKept       atomic.Int64
	alarmsRefused    atomic.Int64
	cancelFailures   atomic.Int64
	scheduleFailures atomic.Int64
	storeFailures    atomic.Int64
	managedAlarms    atomic.Int64

	// Breakdown by label (protected by mutex)
	mu               sync.RWMutex
	passesByTrigger  map[string]int64
	passesByOutcome  map[PassOutcome]int64
	alarmsFiredBy    map[string]int64
	totalDuration    time.Duration
	finishedPasses   int64
	lastPassFinished time.Time
	startTime        time.Time
}

// Metrics represents a snapshot of current metrics
type Metrics struct {
	TotalPasses      int64                 `json:"total_passes"`
	PassesByTrigger  map[string]int64      `json:"passes_by_trigger"`
	PassesByOutcome  map[PassOutcome]int64 `json:"passes_by_outcome"`
	AlarmsScheduled  int64                 `json:"alarms_scheduled"`
	AlarmsCancelled  int64                 `json:"alarms_cancelled"`
	AlarmsKept       int64                 `json:"alarms_kept"`
	AlarmsRefused    int64                 `json:"alarms_refused"`
	CancelFailures   int64                 `json:"cancel_failures"`
	ScheduleFailures int64                 `json:"schedule_failures"`
	StoreFailures    int64                 `json:"store_failures"`
	ManagedAlarms    int64                 `json:"managed_alarms"`
	AlarmsFiredBy    map[string]int64      `json:"alarms_fired_by_event"`
	AvgPassDuration  time.Duration         `json:"avg_pass_duration"`
	LastPassFinished time.Time             `json:"last_pass_finished"`
	Uptime           time.Duration         `json:"uptime"`
}

// Default returns the global metrics collector instance
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		passesByTrigger: make(map[string]int64),
		passesByOutcome: make(map[PassOutcome]int64),
		alarmsFiredBy:   make(map[string]int64),
		startTime:       time.Now(),
	}
}

// RecordPassStarted counts a pass for the trigger that started it
func (c *Collector) RecordPassStarted(trigger string) {
	c.totalPasses.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.passesByTrigger[trigger]++
}

// RecordPassFinished records how a pass ended and how long it took
func (c *Collector) RecordPassFinished(outcome PassOutcome, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passesByOutcome[outcome]++
	c.totalDuration += duration
	c.finishedPasses++
	c.lastPassFinished = time.Now()
}

// RecordAlarmsScheduled adds n newly scheduled alarms
func (c *Collector) RecordAlarmsScheduled(n int) { c.alarmsScheduled.Add(int64(n)) }

// RecordAlarmsCancelled adds n cancelled alarms
func (c *Collector) RecordAlarmsCancelled(n int) { c.alarmsCancelled.Add(int64(n)) }

// RecordAlarmsKept adds n live alarms a pass left untouched
func (c *Collector) RecordAlarmsKept(n int) { c.alarmsKept.Add(int64(n)) }

// RecordAlarmsRefused adds n alarms the driver refused to schedule
func (c *Collector) RecordAlarmsRefused(n int) { c.alarmsRefused.Add(int64(n)) }

// RecordCancelFailures adds n cancel calls that returned an error
func (c *Collector) RecordCancelFailures(n int) { c.cancelFailures.Add(int64(n)) }

// RecordScheduleFailures adds n schedule calls that returned an error other than a refusal
func (c *Collector) RecordScheduleFailures(n int) { c.scheduleFailures.Add(int64(n)) }

// RecordStoreFailure counts a failed write of the id map
func (c *Collector) RecordStoreFailure() { c.storeFailures.Add(1) }

// RecordManagedAlarms sets the number of alarms tracked in the id map
func (c *Collector) RecordManagedAlarms(n int) { c.managedAlarms.Store(int64(n)) }

// RecordAlarmFired counts an alarm delivered by the dispatcher
func (c *Collector) RecordAlarmFired(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alarmsFiredBy[event]++
}

// GetMetrics returns a snapshot of current metrics
func (c *Collector) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byTrigger := make(map[string]int64, len(c.passesByTrigger))
	for k, v := range c.passesByTrigger {
		byTrigger[k] = v
	}

	byOutcome := make(map[PassOutcome]int64, len(c.passesByOutcome))
	for k, v := range c.passesByOutcome {
		byOutcome[k] = v
	}

	fired := make(map[string]int64, len(c.alarmsFiredBy))
	for k, v := range c.alarmsFiredBy {
		fired[k] = v
	}

	var avgDuration time.Duration
	if c.finishedPasses > 0 {
		avgDuration = c.totalDuration / time.Duration(c.finishedPasses)
	}

	return Metrics{
		TotalPasses:      c.totalPasses.Load(),
		PassesByTrigger:  byTrigger,
		PassesByOutcome:  byOutcome,
		AlarmsScheduled:  c.alarmsScheduled.Load(),
		AlarmsCancelled:  c.alarmsCancelled.Load(),
		AlarmsKept:       c.alarmsKept.Load(),
		AlarmsRefused:    c.alarmsRefused.Load(),
		CancelFailures:   c.cancelFailures.Load(),
		ScheduleFailures: c.scheduleFailures.Load(),
		StoreFailures:    c.storeFailures.Load(),
		ManagedAlarms:    c.managedAlarms.Load(),
		AlarmsFiredBy:    fired,
		AvgPassDuration:  avgDuration,
		LastPassFinished: c.lastPassFinished,
		Uptime:           time.Since(c.startTime),
	}
}

// Reset clears all metrics (useful for testing)
func (c *Collector) Reset() {
	c.totalPasses.Store(0)
	c.alarmsScheduled.Store(0)
	c.alarmsCancelled.Store(0)
	c.alarmsKept.Store(0)
	c.alarmsRefused.Store(0)
	c.cancelFailures.Store(0)
	c.scheduleFailures.Store(0)
	c.storeFailures.Store(0)
	c.managedAlarms.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.passesByTrigger = make(map[string]int64)
	c.passesByOutcome = make(map[PassOutcome]int64)
	c.alarmsFiredBy = make(map[string]int64)
	c.totalDuration = 0
	c.finishedPasses = 0
	c.lastPassFinished = time.Time{}
	c.startTime = time.Now()
}

// GetMetrics returns metrics from the global collector
func GetMetrics() Metrics {
	return Default().GetMetrics()
}

// ResetMetrics resets the global collector
func ResetMetrics() {
	Default().Reset()
}

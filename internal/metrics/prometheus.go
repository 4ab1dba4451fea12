package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adhan"

var (
	passesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "reconcile", "passes_total"),
		"Reconciliation passes started, by trigger.",
		[]string{"trigger"}, nil)
	outcomesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "reconcile", "pass_outcomes_total"),
		"Reconciliation passes finished, by outcome.",
		[]string{"outcome"}, nil)
	firedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "dispatch", "alarms_fired_total"),
		"Alarms delivered by the dispatcher, by event.",
		[]string{"event"}, nil)
)

// labelled exposes the collector's per-label maps as const metrics
type labelled struct {
	c *Collector
}

func (l labelled) Describe(ch chan<- *prometheus.Desc) {
	ch <- passesDesc
	ch <- outcomesDesc
	ch <- firedDesc
}

func (l labelled) Collect(ch chan<- prometheus.Metric) {
	m := l.c.GetMetrics()
	for trigger, n := range m.PassesByTrigger {
		ch <- prometheus.MustNewConstMetric(passesDesc, prometheus.CounterValue, float64(n), trigger)
	}
	for outcome, n := range m.PassesByOutcome {
		ch <- prometheus.MustNewConstMetric(outcomesDesc, prometheus.CounterValue, float64(n), string(outcome))
	}
	for event, n := range m.AlarmsFiredBy {
		ch <- prometheus.MustNewConstMetric(firedDesc, prometheus.CounterValue, float64(n), event)
	}
}

// Exporter publishes a Collector in the Prometheus exposition format
type Exporter struct {
	registry *prometheus.Registry
	handler  http.Handler
}

// NewExporter builds a registry reading from c
func NewExporter(c *Collector) *Exporter {
	registry := prometheus.NewRegistry()

	counter := func(subsystem, name, help string, fn func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}

	registry.MustRegister(
		labelled{c: c},
		counter("reconcile", "alarms_scheduled_total", "Alarms scheduled with the driver.",
			func() int64 { return c.alarmsScheduled.Load() }),
		counter("reconcile", "alarms_cancelled_total", "Alarms cancelled with the driver.",
			func() int64 { return c.alarmsCancelled.Load() }),
		counter("reconcile", "alarms_kept_total", "Live alarms left untouched by a pass.",
			func() int64 { return c.alarmsKept.Load() }),
		counter("reconcile", "alarms_refused_total", "Alarms the driver refused as past due.",
			func() int64 { return c.alarmsRefused.Load() }),
		counter("reconcile", "cancel_failures_total", "Cancel calls that returned an error.",
			func() int64 { return c.cancelFailures.Load() }),
		counter("reconcile", "schedule_failures_total", "Schedule calls that returned an error.",
			func() int64 { return c.scheduleFailures.Load() }),
		counter("reconcile", "store_failures_total", "Failed writes of the alarm id map.",
			func() int64 { return c.storeFailures.Load() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "managed_alarms",
			Help:      "Alarms currently tracked in the id map.",
		}, func() float64 { return float64(c.managedAlarms.Load()) }),
	)

	return &Exporter{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
}

// Registry returns the underlying registry
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the metrics endpoint
func (e *Exporter) Handler() http.Handler {
	return e.handler
}

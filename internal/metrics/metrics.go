package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Capture metrics
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapsum_events_total",
			Help: "Total interaction events processed, by kind",
		},
		[]string{"kind"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapsum_events_dropped_total",
			Help: "Events dropped before aggregation",
		},
		[]string{"reason"},
	)

	ForegroundSwitches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapsum_foreground_switches_total",
			Help: "Foreground package transitions",
		},
	)

	// Session metrics
	SessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapsum_sessions_opened_total",
			Help: "App sessions opened",
		},
	)

	SessionsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapsum_sessions_closed_total",
			Help: "App sessions closed",
		},
	)

	DailyResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapsum_daily_resets_total",
			Help: "Daily counter resets performed",
		},
	)

	// Journal metrics
	JournalErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapsum_journal_errors_total",
			Help: "Event journal write failures",
		},
	)

	// Export metrics
	ExportFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapsum_export_failures_total",
			Help: "CSV export failures",
		},
	)

	// Subscriber metrics
	ActiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tapsum_snapshot_subscribers",
			Help: "Connected snapshot subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		EventsDropped,
		ForegroundSwitches,
		SessionsOpened,
		SessionsClosed,
		DailyResets,
		JournalErrors,
		ExportFailures,
		ActiveSubscribers,
	)
}

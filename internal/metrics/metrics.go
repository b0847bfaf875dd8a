package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RollupCyclesTotal counts rollup cycles by result (success, failure, skipped)
	RollupCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_rollup_cycles_total",
			Help: "Total number of check-in rollup cycles",
		},
		[]string{"result"},
	)

	// RollupCycleDuration tracks cycle wall time
	RollupCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkin_rollup_cycle_duration_seconds",
			Help:    "Rollup cycle duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	// EventsProcessed counts raw events folded into daily summaries
	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_rollup_events_processed_total",
			Help: "Total number of check-in events folded into daily summaries",
		},
	)

	// SummariesTouched counts daily summary upserts
	SummariesTouched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_rollup_summaries_touched_total",
			Help: "Total number of daily summary rows created or incremented",
		},
	)

	// PartitionConflicts counts partitions skipped because their events were already applied
	PartitionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_rollup_partition_conflicts_total",
			Help: "Total number of day/ministry partitions rolled back on processed-flag conflict",
		},
	)

	// EventsReaped counts processed events deleted after the retention window
	EventsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_rollup_events_reaped_total",
			Help: "Total number of processed check-in events deleted by retention",
		},
	)

	// BacklogPageSize tracks the size of each unprocessed page read by the engine
	BacklogPageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkin_rollup_backlog_page_size",
			Help:    "Number of unprocessed events returned per page",
			Buckets: []float64{0, 1, 10, 100, 500, 1000, 5000},
		},
	)

	// LastSuccessfulCycle records the unix time of the last successful cycle
	LastSuccessfulCycle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkin_rollup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful rollup cycle",
		},
	)

	// CheckInsRecorded counts raw check-ins accepted by the API
	CheckInsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_events_recorded_total",
			Help: "Total number of check-in events recorded",
		},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

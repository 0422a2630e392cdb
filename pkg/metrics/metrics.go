package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunTotal is the total number of entry point runs.
	RunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedtree_run_total",
			Help: "Total number of participant runs",
		},
		[]string{"role", "status"},
	)

	RunActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedtree_run_active",
			Help: "Number of participant runs in progress",
		},
		[]string{"role"},
	)

	ProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedtree_process_duration_seconds",
			Help:    "Training process lifetime in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
		},
		[]string{"role"},
	)

	ProcessExitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedtree_process_exit_total",
			Help: "Total number of reaped training processes by exit code",
		},
		[]string{"role", "code"},
	)

	// RendezvousDuration is the time a client waits for the server address.
	RendezvousDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedtree_rendezvous_wait_seconds",
			Help:    "Time spent waiting for the server address",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~3m
		},
	)

	SignalWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedtree_completion_wait_seconds",
			Help:    "Time the server waits for the first client signal",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	StoreWriteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedtree_store_write_total",
			Help: "Total number of task store writes",
		},
		[]string{"kind", "result"},
	)
)

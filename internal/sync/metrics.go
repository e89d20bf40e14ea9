package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakehouse_sync_flush_attempts_total",
		Help: "Flush cycles that assembled a non-empty payload.",
	})
	flushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakehouse_sync_flush_failures_total",
		Help: "Flush cycles whose remote push failed and were requeued.",
	})
	flushedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakehouse_sync_flushed_records_total",
		Help: "Change entries acknowledged by the remote endpoint.",
	})
	snapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakehouse_sync_snapshots_applied_total",
		Help: "Inbound remote snapshots applied to the local store.",
	})
	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bakehouse_sync_flush_duration_seconds",
		Help:    "Wall time of remote push attempts.",
		Buckets: prometheus.DefBuckets,
	})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bakehouse_sync_pending_records",
		Help: "Change entries waiting for the next flush.",
	})
)

// Package metrics defines Prometheus collectors for streaming multipart uploads.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// partBuckets are exponential buckets for part sizes in bytes, 1 MiB to 1 GiB.
var partBuckets = prometheus.ExponentialBuckets(1<<20, 2, 11)

var (
	// SessionsTotal counts sessions by terminal outcome (completed, aborted).
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3stream_sessions_total",
			Help: "Multipart sessions by outcome",
		},
		[]string{"outcome"},
	)

	// SessionsActive tracks sessions that have been initiated but not finished.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s3stream_sessions_active",
			Help: "Multipart sessions currently open",
		},
	)

	// PartsTotal counts part uploads by status (success, error).
	PartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3stream_parts_total",
			Help: "Part uploads by status",
		},
		[]string{"status"},
	)

	// PartsInFlight tracks part uploads currently running.
	PartsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s3stream_parts_in_flight",
			Help: "Part uploads in flight",
		},
	)

	// PartUploadDuration observes UploadPart latency in seconds.
	PartUploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "s3stream_part_upload_duration_seconds",
			Help:    "UploadPart latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PartSize observes the size of uploaded parts in bytes.
	PartSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "s3stream_part_size_bytes",
			Help:    "Uploaded part size in bytes",
			Buckets: partBuckets,
		},
	)

	// BytesUploadedTotal counts bytes acknowledged by UploadPart.
	BytesUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s3stream_bytes_uploaded_total",
			Help: "Total bytes uploaded in parts",
		},
	)

	// AbortFailuresTotal counts AbortMultipartUpload calls that failed and
	// may have left an orphaned upload behind.
	AbortFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s3stream_abort_failures_total",
			Help: "Failed AbortMultipartUpload calls",
		},
	)
)

// Register registers all collectors with the default registry. It is safe to
// call multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SessionsTotal,
			SessionsActive,
			PartsTotal,
			PartsInFlight,
			PartUploadDuration,
			PartSize,
			BytesUploadedTotal,
			AbortFailuresTotal,
		)
		SessionsTotal.WithLabelValues("completed")
		SessionsTotal.WithLabelValues("aborted")
	})
}

// Package metrics provides Prometheus metrics for the pdplens gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream call outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeUpstream  = "upstream_error"
	OutcomeTransport = "transport_error"
	OutcomeDecode    = "decode_error"
)

// Manager owns every metric the gateway exports. All observations go through
// it so tests can count on an isolated registry.
type Manager struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	auditEnqueued      prometheus.Counter
	auditDropped       prometheus.Counter
	auditWriteFailures prometheus.Counter

	archiveEnqueued       prometheus.Counter
	archiveDropped        prometheus.Counter
	archiveUploaded       prometheus.Counter
	archiveUploadFailures prometheus.Counter

	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager = NewManager()

// Default returns the process-wide metrics manager.
func Default() *Manager { return globalManager }

// NewManager creates a metrics manager on its own registry, free of the
// default Go collectors.
func NewManager() *Manager {
	m := &Manager{registry: prometheus.NewRegistry()}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.upstreamRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdplens",
			Name:      "upstream_requests_total",
			Help:      "Upstream analysis engine calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	m.upstreamDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdplens",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream call duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	m.auditEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "audit_enqueued_total",
		Help:      "Usage audit entries accepted into the buffer",
	})

	m.auditDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "audit_dropped_total",
		Help:      "Usage audit entries dropped because the buffer was full",
	})

	m.auditWriteFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "audit_write_failures_total",
		Help:      "Usage audit entries that failed to persist",
	})

	m.archiveEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "archive_enqueued_total",
		Help:      "Reports accepted for archival",
	})

	m.archiveDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "archive_dropped_total",
		Help:      "Reports dropped because the archive buffer was full",
	})

	m.archiveUploaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "archive_uploaded_total",
		Help:      "Reports successfully uploaded to object storage",
	})

	m.archiveUploadFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "archive_upload_failures_total",
		Help:      "Report uploads that failed",
	})

	m.jobsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: "pdplens",
		Name:      "analysis_jobs_started_total",
		Help:      "Background analysis jobs started",
	})

	m.jobsFinished = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdplens",
			Name:      "analysis_jobs_finished_total",
			Help:      "Background analysis jobs finished by status",
		},
		[]string{"status"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdplens",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdplens",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

// ObserveUpstream records one upstream call.
func (m *Manager) ObserveUpstream(operation, outcome string, d time.Duration) {
	m.upstreamRequests.WithLabelValues(operation, outcome).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// AuditEnqueued counts an audit entry accepted into the buffer.
func (m *Manager) AuditEnqueued() { m.auditEnqueued.Inc() }

// AuditDropped counts an audit entry dropped on a full buffer.
func (m *Manager) AuditDropped() { m.auditDropped.Inc() }

// AuditWriteFailure counts a failed audit persist.
func (m *Manager) AuditWriteFailure() { m.auditWriteFailures.Inc() }

// ArchiveEnqueued counts a report accepted for archival.
func (m *Manager) ArchiveEnqueued() { m.archiveEnqueued.Inc() }

// ArchiveDropped counts a report dropped on a full archive buffer.
func (m *Manager) ArchiveDropped() { m.archiveDropped.Inc() }

// ArchiveUploaded counts a successful report upload.
func (m *Manager) ArchiveUploaded() { m.archiveUploaded.Inc() }

// ArchiveUploadFailure counts a failed report upload.
func (m *Manager) ArchiveUploadFailure() { m.archiveUploadFailures.Inc() }

// JobStarted counts a background job pickup.
func (m *Manager) JobStarted() { m.jobsStarted.Inc() }

// JobFinished counts a background job completion by terminal status.
func (m *Manager) JobFinished(status string) {
	m.jobsFinished.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records one handled HTTP request. path should be the
// route template, not the raw URL, to keep cardinality bounded.
func (m *Manager) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler exposes the manager's registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus metrics for the sync server, grounded
// on the pack's per-subsystem Metrics struct (e.g. pkg/metadata/lock's lock
// and connection metrics) registered against a prometheus.Registerer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants.
const (
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelKind      = "kind"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds every counter/gauge/histogram the sync server exports.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	workerQueueDepth *prometheus.GaugeVec
	workersActive    prometheus.Gauge
	sessionsActive   prometheus.Gauge
	mediaBytesTotal  *prometheus.CounterVec
	mediaFilesTotal  *prometheus.CounterVec

	registered bool
}

// New creates and, if registry is non-nil, registers the sync server's metrics.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ankisyncd",
				Subsystem: "sync",
				Name:      "requests_total",
				Help:      "Total number of sync protocol operations dispatched",
			},
			[]string{LabelOperation, LabelStatus},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ankisyncd",
				Subsystem: "sync",
				Name:      "request_duration_seconds",
				Help:      "Time spent executing a sync protocol operation",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{LabelOperation},
		),
		workerQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ankisyncd",
				Subsystem: "workerpool",
				Name:      "queue_depth",
				Help:      "Number of jobs queued for a collection worker",
			},
			[]string{"path"},
		),
		workersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ankisyncd",
				Subsystem: "workerpool",
				Name:      "workers_active",
				Help:      "Number of collection workers currently running",
			},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ankisyncd",
				Subsystem: "sessions",
				Name:      "active",
				Help:      "Number of sessions currently known to the session store",
			},
		),
		mediaBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ankisyncd",
				Subsystem: "media",
				Name:      "bytes_total",
				Help:      "Total media bytes transferred",
			},
			[]string{LabelKind}, // "upload" or "download"
		),
		mediaFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ankisyncd",
				Subsystem: "media",
				Name:      "files_total",
				Help:      "Total media files transferred",
			},
			[]string{LabelKind},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.requestsTotal,
			m.requestDuration,
			m.workerQueueDepth,
			m.workersActive,
			m.sessionsActive,
			m.mediaBytesTotal,
			m.mediaFilesTotal,
		)
		m.registered = true
	}

	return m
}

func (m *Metrics) ObserveRequest(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) SetWorkerQueueDepth(path string, depth float64) {
	if m == nil {
		return
	}
	m.workerQueueDepth.WithLabelValues(path).Set(depth)
}

func (m *Metrics) SetWorkersActive(count float64) {
	if m == nil {
		return
	}
	m.workersActive.Set(count)
}

func (m *Metrics) SetSessionsActive(count float64) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(count)
}

func (m *Metrics) ObserveMediaTransfer(kind string, files int, bytes int64) {
	if m == nil {
		return
	}
	m.mediaFilesTotal.WithLabelValues(kind).Add(float64(files))
	m.mediaBytesTotal.WithLabelValues(kind).Add(float64(bytes))
}

const (
	KindUpload   = "upload"
	KindDownload = "download"
)

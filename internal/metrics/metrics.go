// Package metrics exposes the Prometheus instrumentation of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the audiocut service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	// Subprocess metrics, labelled by tool (ffmpeg, ffprobe)
	ProcessRuns     *prometheus.CounterVec
	ProcessFailures *prometheus.CounterVec
	ProcessDuration *prometheus.HistogramVec
	ProcessesActive prometheus.GaugeFunc

	// Output metrics
	TrimsProduced   prometheus.Counter
	ChunksProduced  prometheus.Counter
	ArchiveEntries  prometheus.Histogram
	UploadSize      prometheus.Histogram
	CleanupFailures prometheus.Counter
}

// New creates all metrics on a dedicated registry. inUse reports the number of
// running subprocesses; it may be nil.
func New(inUse func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	if inUse == nil {
		inUse = func() int { return 0 }
	}

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocut_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiocut_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7 minutes
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocut_http_errors_total",
			Help: "Total number of HTTP error responses by error code",
		}, []string{"method", "endpoint", "error_code"}),

		ProcessRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocut_process_runs_total",
			Help: "Total number of ffmpeg and ffprobe invocations",
		}, []string{"tool"}),
		ProcessFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocut_process_failures_total",
			Help: "Total number of failed ffmpeg and ffprobe invocations",
		}, []string{"tool"}),
		ProcessDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiocut_process_duration_seconds",
			Help:    "Wall time of ffmpeg and ffprobe invocations",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5 minutes
		}, []string{"tool"}),
		ProcessesActive: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "audiocut_processes_active",
			Help: "Current number of running ffmpeg and ffprobe processes",
		}, func() float64 { return float64(inUse()) }),

		TrimsProduced: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocut_trims_produced_total",
			Help: "Total number of trimmed excerpts produced",
		}),
		ChunksProduced: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocut_chunks_produced_total",
			Help: "Total number of audio chunks produced",
		}),
		ArchiveEntries: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiocut_archive_entries",
			Help:    "Number of chunks per zip archive",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
		}),
		UploadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiocut_upload_size_bytes",
			Help:    "Size of uploaded audio files in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 9), // 64KB to ~4GB
		}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocut_cleanup_failures_total",
			Help: "Total number of requests whose temporary files could not all be removed",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// RecordHTTPError records an error response
func (m *Metrics) RecordHTTPError(method, endpoint, code string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, code).Inc()
}

// ObserveProcess records one subprocess invocation. Its signature matches
// media.Observer.
func (m *Metrics) ObserveProcess(tool string, elapsed time.Duration, err error) {
	m.ProcessRuns.WithLabelValues(tool).Inc()
	m.ProcessDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	if err != nil {
		m.ProcessFailures.WithLabelValues(tool).Inc()
	}
}

// RecordTrim records a produced excerpt
func (m *Metrics) RecordTrim() {
	m.TrimsProduced.Inc()
}

// RecordChunks records the chunks of one archive
func (m *Metrics) RecordChunks(n int) {
	m.ChunksProduced.Add(float64(n))
	m.ArchiveEntries.Observe(float64(n))
}

// RecordUpload records the size of an accepted upload
func (m *Metrics) RecordUpload(sizeBytes int64) {
	m.UploadSize.Observe(float64(sizeBytes))
}

// RecordCleanupFailure increments the cleanup failure counter
func (m *Metrics) RecordCleanupFailure() {
	m.CleanupFailures.Inc()
}

package observability

import (
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	uploadedFiles   *prometheus.CounterVec
	registrations   prometheus.Counter
	reports         *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiscal_bfa_operation_duration_seconds",
				Help:    "Duration of client operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		backendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_bfa_backend_errors_total",
				Help: "Total failed calls to the fiscal backend.",
			},
			[]string{"endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		uploadedFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_bfa_uploaded_files_total",
				Help: "XML files handled by the upload flow, by outcome.",
			},
			[]string{"outcome"}, // success, failure, rejected
		),
		registrations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fiscal_bfa_company_registrations_total",
				Help: "Companies registered through the wizard.",
			},
		),
		reports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_bfa_reports_total",
				Help: "Inconsistency report exports, by outcome.",
			},
			[]string{"outcome"}, // ready, empty, error
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrBackendError increments the backend error counter.
func (m *Metrics) IncrBackendError(endpoint string) {
	m.backendErrors.WithLabelValues(endpoint).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// AddUploadedFiles counts files by outcome.
func (m *Metrics) AddUploadedFiles(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.uploadedFiles.WithLabelValues(outcome).Add(float64(n))
}

// IncrRegistration counts a registered company.
func (m *Metrics) IncrRegistration() {
	m.registrations.Inc()
}

// IncrReport counts a report export by outcome.
func (m *Metrics) IncrReport(outcome string) {
	m.reports.WithLabelValues(outcome).Inc()
}

// Snapshot returns a summary of the counters suitable for GET /v1/metrics/summary.
func (m *Metrics) Snapshot() *domain.ClientMetrics {
	hits := counterValue(m.cacheHits.WithLabelValues("cnpj_lookup"))
	misses := counterValue(m.cacheMisses.WithLabelValues("cnpj_lookup"))

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	rejected := counterValue(m.uploadedFiles.WithLabelValues("failure")) +
		counterValue(m.uploadedFiles.WithLabelValues("rejected"))

	return &domain.ClientMetrics{
		BackendErrors:     int64(sumCounterVec(m.backendErrors)),
		LookupCacheHitPct: hitRate,
		FilesUploaded:     int64(counterValue(m.uploadedFiles.WithLabelValues("success"))),
		FilesRejected:     int64(rejected),
		Registrations:     int64(counterValue(m.registrations)),
		ReportsExported:   int64(counterValue(m.reports.WithLabelValues("ready"))),
		Period:            "all_time",
	}
}

// counterValue extracts the current float64 value from a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}

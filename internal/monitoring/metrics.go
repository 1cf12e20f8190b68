package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LinksProcessed  prometheus.Counter
	RecordsSaved    prometheus.Counter
	RecordsSkipped  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	FetchAttempts   *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	RecordsExported prometheus.Counter
	RunInProgress   prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the crawler metrics on reg. Passing nil uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		LinksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_links_processed_total",
			Help: "The total number of detail links processed",
		}),
		RecordsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_records_saved_total",
			Help: "The total number of item records persisted",
		}),
		RecordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_records_skipped_total",
			Help: "The total number of links skipped without a persisted record",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'listing_failed', 'fetch_failed', 'save_failed'
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_fetch_attempts_total",
			Help: "Fetch attempts by outcome",
		}, []string{"outcome"}), // 'ok', 'retry', 'fail'
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Duration of single HTTP requests",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
		}, []string{"kind"}),
		RecordsExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_records_exported_total",
			Help: "The total number of normalized rows written to the aggregate table",
		}),
		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_run_in_progress",
			Help: "1 while a crawl run is executing",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncLinksProcessed() {
	if m == nil {
		return
	}
	m.LinksProcessed.Inc()
}

func (m *Metrics) IncRecordsSaved() {
	if m == nil {
		return
	}
	m.RecordsSaved.Inc()
}

func (m *Metrics) IncRecordsSkipped() {
	if m == nil {
		return
	}
	m.RecordsSkipped.Inc()
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncFetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) AddRecordsExported(n int) {
	if m == nil {
		return
	}
	m.RecordsExported.Add(float64(n))
}

func (m *Metrics) SetRunInProgress(running bool) {
	if m == nil {
		return
	}
	if running {
		m.RunInProgress.Set(1)
		return
	}
	m.RunInProgress.Set(0)
}

func (m *Metrics) ObserveHTTP(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

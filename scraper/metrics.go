package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler. Collectors are safe
// to share between chains; no chain state lives here.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesTotal      prometheus.Counter
	RecordsTotal    prometheus.Counter
	RetriesTotal    prometheus.Counter
	DelaysTotal     prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	ChainsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyres_requests_total",
			Help: "Total HTTP requests issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tyres_request_duration_seconds",
			Help:    "HTTP request latency for crawler requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tyres_pages_total",
			Help: "Total number of listing pages extracted.",
		},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tyres_records_total",
			Help: "Total number of records accumulated.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tyres_retries_total",
			Help: "Total number of fetch retries.",
		},
	)
	delays := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tyres_page_delays_total",
			Help: "Total number of politeness delays between pages.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyres_errors_total",
			Help: "Total number of failed chains by error kind.",
		},
		[]string{"kind"},
	)
	chains := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tyres_chains_total",
			Help: "Total number of finished chains by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requests, requestDuration, pages, records, retries, delays, errorsTotal, chains)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesTotal:      pages,
		RecordsTotal:    records,
		RetriesTotal:    retries,
		DelaysTotal:     delays,
		ErrorsTotal:     errorsTotal,
		ChainsTotal:     chains,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddPage records one extracted page and its record count.
func (m *Metrics) AddPage(records int) {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
	m.RecordsTotal.Add(float64(records))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncDelays increments the page delay counter.
func (m *Metrics) IncDelays() {
	if m == nil {
		return
	}
	m.DelaysTotal.Inc()
}

// IncError increments the errors counter for a kind label.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// IncChain counts a finished chain.
func (m *Metrics) IncChain(outcome string) {
	if m == nil {
		return
	}
	m.ChainsTotal.WithLabelValues(outcome).Inc()
}

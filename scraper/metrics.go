package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ListingsTotal   prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	DownloadsTotal  *prometheus.CounterVec
	LocationsDone   prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venues_requests_total",
			Help: "Total search API requests issued, by endpoint.",
		},
		[]string{"endpoint"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "venues_request_duration_seconds",
			Help:    "Search API request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	listings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "venues_listings_total",
			Help: "Total number of listings accepted into the run.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "venues_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venues_errors_total",
			Help: "Total number of search errors by type.",
		},
		[]string{"error_type"},
	)
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venues_image_downloads_total",
			Help: "Image downloads by result.",
		},
		[]string{"result"},
	)
	locations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "venues_locations_completed_total",
			Help: "Locations whose pagination finished.",
		},
	)

	registry.MustRegister(requests, requestDuration, listings, retries, errorsTotal, downloads, locations)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ListingsTotal:   listings,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		DownloadsTotal:  downloads,
		LocationsDone:   locations,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(endpoint string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncListings increments the accepted listings counter.
func (m *Metrics) IncListings() {
	if m == nil {
		return
	}
	m.ListingsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncDownload increments the downloads counter for "ok" or "failed".
func (m *Metrics) IncDownload(result string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(result).Inc()
}

// IncLocation marks one location as finished.
func (m *Metrics) IncLocation() {
	if m == nil {
		return
	}
	m.LocationsDone.Inc()
}

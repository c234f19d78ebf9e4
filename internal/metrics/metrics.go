// Package metrics provides the Prometheus metrics for the AgroDoc server.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the workflow and HTTP metrics. A nil *Metrics records
// nothing, so components can run without a registry.
type Metrics struct {
	ClassificationTotal    *prometheus.CounterVec
	ClassificationDuration prometheus.Histogram
	LoginTotal             *prometheus.CounterVec
	RegistrationTotal      *prometheus.CounterVec
	DialogueLookupTotal    *prometheus.CounterVec
	ActiveSessions         prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the metrics and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register agrodoc metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.ClassificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodoc_classifications_total",
			Help: "Total number of image analyses partitioned by outcome.",
		},
		[]string{"status"}, // success, invalid_image, classifier_error, store_error, rejected
	)
	m.ClassificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrodoc_classification_duration_seconds",
			Help:    "Time taken to decode, classify and store an uploaded image.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)
	m.LoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodoc_logins_total",
			Help: "Total number of login attempts partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.RegistrationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodoc_registrations_total",
			Help: "Total number of registration attempts partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.DialogueLookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodoc_dialogue_lookups_total",
			Help: "Disease info lookups in the guided dialogue partitioned by fallback tier.",
		},
		[]string{"tier"},
	)
	m.ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agrodoc_active_sessions",
			Help: "Number of browsing sessions currently held in memory.",
		},
	)
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodoc_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status_code"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrodoc_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// Registry returns the registry the metrics were registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordClassification records the outcome of one analysis.
func (m *Metrics) RecordClassification(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ClassificationTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.ClassificationDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) RecordLogin(status string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRegistration(status string) {
	if m == nil {
		return
	}
	m.RegistrationTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordDialogueLookup(tier string) {
	if m == nil {
		return
	}
	m.DialogueLookupTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ClassificationTotal.Describe(ch)
	ch <- m.ClassificationDuration.Desc()
	m.LoginTotal.Describe(ch)
	m.RegistrationTotal.Describe(ch)
	m.DialogueLookupTotal.Describe(ch)
	ch <- m.ActiveSessions.Desc()
	m.HTTPRequestsTotal.Describe(ch)
	m.HTTPRequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ClassificationTotal.Collect(ch)
	ch <- m.ClassificationDuration
	m.LoginTotal.Collect(ch)
	m.RegistrationTotal.Collect(ch)
	m.DialogueLookupTotal.Collect(ch)
	ch <- m.ActiveSessions
	m.HTTPRequestsTotal.Collect(ch)
	m.HTTPRequestDuration.Collect(ch)
}

// Package metrics exposes Prometheus collectors for the markdown service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheLookupsTotal          *prometheus.CounterVec
	admissionsTotal            *prometheus.CounterVec
	browserLaunchesTotal       *prometheus.CounterVec
	browserIdleShutdownsTotal  prometheus.Counter
	extractionsTotal           *prometheus.CounterVec
	extractionDurationSeconds  *prometheus.HistogramVec
	llmFiltersTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markdowner_cache_lookups_total",
				Help: "Cache lookups, labeled by result (hit, miss, error).",
			},
			[]string{"result"},
		)

		admissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markdowner_admissions_total",
				Help: "Per-URL admission decisions, labeled by outcome (allowed, denied, trusted, error).",
			},
			[]string{"outcome"},
		)

		browserLaunchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markdowner_browser_launches_total",
				Help: "Browser launch attempts, labeled by result.",
			},
			[]string{"result"},
		)

		browserIdleShutdownsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "markdowner_browser_idle_shutdowns_total",
				Help: "Browser sessions closed by the idle timer.",
			},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markdowner_extractions_total",
				Help: "Fresh extractions, labeled by kind (page, tweet) and status.",
			},
			[]string{"kind", "status"},
		)

		extractionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "markdowner_extraction_duration_seconds",
				Help:    "Histogram of fresh extraction latencies, labeled by kind.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		)

		llmFiltersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markdowner_llm_filters_total",
				Help: "LLM filter invocations, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCacheLookup counts one cache lookup.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveAdmission counts one admission decision.
func ObserveAdmission(outcome string) {
	admissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtraction records one fresh extraction.
func ObserveExtraction(kind string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	extractionsTotal.WithLabelValues(kind, status).Inc()
	extractionDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveLLMFilter counts one LLM filter invocation.
func ObserveLLMFilter(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	llmFiltersTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// BrowserObserver feeds browser lifecycle events into the collectors.
type BrowserObserver struct{}

// Launched counts one launch attempt.
func (BrowserObserver) Launched(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	browserLaunchesTotal.WithLabelValues(result).Inc()
}

// IdleShutdown counts one idle close.
func (BrowserObserver) IdleShutdown() {
	browserIdleShutdownsTotal.Inc()
}

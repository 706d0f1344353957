// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visual_search_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visual_search_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Каталог
	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visual_search_catalog_items",
			Help: "Number of catalog items resident in memory",
		},
	)

	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visual_search_rank_duration_seconds",
			Help:    "Duration of a full similarity scan over the catalog",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
	)

	// Внешние сервисы
	ExternalCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visual_search_external_call_errors_total",
			Help: "Total number of failed calls to external services",
		},
		[]string{"service"},
	)

	AnalysisCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visual_search_analysis_cache_hits_total",
			Help: "Total number of analysis cache hits",
		},
	)

	AnalysisCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visual_search_analysis_cache_misses_total",
			Help: "Total number of analysis cache misses",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "visual_search_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visual_search_events_published_total",
			Help: "Total number of search events handed to the broker",
		},
		[]string{"kind", "result"},
	)
)

// RecordAPIRequest записывает длительность обработки HTTP-запроса.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// TrackActiveRequest увеличивает или уменьшает счётчик активных запросов.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordExternalError учитывает неудачный вызов внешнего сервиса ("ml", "llm", "redis", "kafka").
func RecordExternalError(service string) {
	ExternalCallErrors.WithLabelValues(service).Inc()
}

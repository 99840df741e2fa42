package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector
	registry  *prometheus.Registry

	// Prometheus metrics
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheHitRate     prometheus.Gauge
	cacheKeys        prometheus.Gauge
	cacheMemoryBytes prometheus.Gauge
	cacheEvictions   prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
	rateLimited      prometheus.Counter
	analyses         *prometheus.CounterVec
	grpcRequests     *prometheus.CounterVec
	grpcDuration     *prometheus.HistogramVec
}

// NewPrometheusExporter creates a new Prometheus exporter with its own registry.
// The registry also carries the Go runtime and process collectors.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &PrometheusExporter{
		collector: collector,
		registry:  registry,
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "relcalc_catalog_cache_hits_total",
			Help: "Total number of catalog cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "relcalc_catalog_cache_misses_total",
			Help: "Total number of catalog cache misses",
		}),
		cacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relcalc_catalog_cache_hit_rate",
			Help: "Current catalog cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relcalc_catalog_cache_keys_current",
			Help: "Current number of keys in the catalog cache",
		}),
		cacheMemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relcalc_catalog_cache_memory_bytes",
			Help: "Current memory usage of the catalog cache in bytes",
		}),
		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "relcalc_catalog_cache_evictions_total",
			Help: "Total number of catalog cache invalidations and evictions",
		}),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relcalc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relcalc_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method", "route"},
		),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relcalc_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "relcalc_rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relcalc_analyses_total",
				Help: "Total number of DNA analyses by best matching relationship",
			},
			[]string{"top_code"},
		),
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relcalc_grpc_requests_total",
				Help: "Total number of gRPC requests by status code",
			},
			[]string{"service", "method", "code"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relcalc_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"service", "method"},
		),
	}
}

// Handler returns the HTTP handler serving the exporter's registry
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Gatherer returns the registry backing the exporter
func (e *PrometheusExporter) Gatherer() prometheus.Gatherer {
	return e.registry
}

// Update updates Gauge metrics from the collector.
// Counters are updated via interceptors, so only update gauges here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.cacheMemoryBytes.Set(float64(cacheMetrics.MemoryBytes))
	e.httpInFlight.Set(float64(e.collector.GetAPIMetrics().InFlight))
}

// RecordHTTPRequest records a served HTTP request.
func (e *PrometheusExporter) RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	e.httpRequests.WithLabelValues(method, route, status).Inc()
	e.httpDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordRateLimited records a request rejected by the rate limiter.
func (e *PrometheusExporter) RecordRateLimited() {
	e.rateLimited.Inc()
}

// RecordAnalysis records a completed analysis.
func (e *PrometheusExporter) RecordAnalysis(topCode string) {
	if topCode == "" {
		topCode = "none"
	}
	e.analyses.WithLabelValues(topCode).Inc()
}

// RecordGRPCRequest records a served gRPC call.
func (e *PrometheusExporter) RecordGRPCRequest(service, method, code string, durationSeconds float64) {
	e.grpcRequests.WithLabelValues(service, method, code).Inc()
	e.grpcDuration.WithLabelValues(service, method).Observe(durationSeconds)
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit() {
	e.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss() {
	e.cacheMisses.Inc()
}

// RecordCacheEviction records a cache eviction.
func (e *PrometheusExporter) RecordCacheEviction() {
	e.cacheEvictions.Inc()
}

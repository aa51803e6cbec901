package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and order pipeline instrumentation.
// Every method is safe on a nil receiver so services can run without metrics in tests.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	ordersCreated       prometheus.Counter
	ordersCancelled     prometheus.Counter
	statusTransitions   *prometheus.CounterVec
	payments            *prometheus.CounterVec
	checksumMismatches  prometheus.Counter
	ingestionRejections *prometheus.CounterVec
	scannerUnavailable  prometheus.Counter
	sweepDeleted        prometheus.Counter
	eventsPublished     *prometheus.CounterVec
}

// NewMetricsService registers all collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Print orders accepted",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Print orders cancelled by customers",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Operator status changes by source and target status",
		}, []string{"from", "to"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment lifecycle events by outcome",
		}, []string{"outcome"}),
		checksumMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_checksum_mismatch_total",
			Help: "Gateway callbacks rejected because the checksum did not verify",
		}),
		ingestionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_rejections_total",
			Help: "Uploads rejected by reason",
		}, []string{"reason"}),
		scannerUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_unavailable_total",
			Help: "Uploads accepted without a verdict because the scanner failed or timed out",
		}),
		sweepDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_sweep_deleted_total",
			Help: "Blobs removed by the retention sweep",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_events_total",
			Help: "Domain events by type and publish result",
		}, []string{"type", "result"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency.(prometheus.Collector), m.cacheWrite.(prometheus.Collector), m.cacheHits, m.cacheMisses,
		m.ordersCreated, m.ordersCancelled, m.statusTransitions, m.payments, m.checksumMismatches,
		m.ingestionRejections, m.scannerUnavailable, m.sweepDeleted, m.eventsPublished,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

func (m *MetricsService) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *MetricsService) OrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

func (m *MetricsService) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// Payment counts an outcome: initiated, paid, failed, duplicate, conflict, stale.
func (m *MetricsService) Payment(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

func (m *MetricsService) ChecksumMismatch() {
	if m == nil {
		return
	}
	m.checksumMismatches.Inc()
}

func (m *MetricsService) IngestionRejected(reason string) {
	if m == nil {
		return
	}
	m.ingestionRejections.WithLabelValues(reason).Inc()
}

func (m *MetricsService) ScannerUnavailable() {
	if m == nil {
		return
	}
	m.scannerUnavailable.Inc()
}

func (m *MetricsService) SweepDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepDeleted.Add(float64(n))
}

func (m *MetricsService) EventPublished(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}

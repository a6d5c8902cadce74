package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	rpcRequestsTotal *prometheus.CounterVec
	rpcDuration      *prometheus.HistogramVec

	resourceOpsTotal *prometheus.CounterVec

	shortTermEntries     prometheus.Gauge
	memoryReadDuration   *prometheus.HistogramVec
	memoryWriteDuration  *prometheus.HistogramVec
	consolidationRuns    prometheus.Counter
	consolidatedContexts prometheus.Counter

	routeTotal      *prometheus.CounterVec
	routeDuration   *prometheus.HistogramVec
	handoffTotal    *prometheus.CounterVec
	handoffDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			rpcRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "merit_rpc_requests_total",
					Help: "Total RPC requests by method and outcome.",
				},
				[]string{"method", "outcome"},
			),
			rpcDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "merit_rpc_duration_seconds",
					Help:    "RPC request duration by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			resourceOpsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "merit_resource_operations_total",
					Help: "Resource adapter operations by scheme, operation and outcome.",
				},
				[]string{"scheme", "operation", "outcome"},
			),
			shortTermEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "merit_short_term_entries",
					Help: "Current number of live short-term memory entries.",
				},
			),
			memoryReadDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "merit_memory_read_duration_seconds",
					Help:    "Memory tier read duration.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tier"},
			),
			memoryWriteDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "merit_memory_write_duration_seconds",
					Help:    "Memory tier write duration.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tier"},
			),
			consolidationRuns: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "merit_consolidation_runs_total",
					Help: "Total consolidation sweeps.",
				},
			),
			consolidatedContexts: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "merit_consolidated_contexts_total",
					Help: "Total short-term contexts promoted to episodic memory.",
				},
			),
			routeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "merit_route_total",
					Help: "Total routed requests by request type and outcome.",
				},
				[]string{"request_type", "outcome"},
			),
			routeDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "merit_route_duration_seconds",
					Help:    "Agent processing duration by request type.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"request_type"},
			),
			handoffTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "merit_handoffs_total",
					Help: "Total handoff deliveries by outcome.",
				},
				[]string{"outcome"},
			),
			handoffDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "merit_handoff_duration_seconds",
					Help:    "Handoff delivery duration.",
					Buckets: prometheus.DefBuckets,
				},
			),
		}

		prometheus.MustRegister(
			m.rpcRequestsTotal,
			m.rpcDuration,
			m.resourceOpsTotal,
			m.shortTermEntries,
			m.memoryReadDuration,
			m.memoryWriteDuration,
			m.consolidationRuns,
			m.consolidatedContexts,
			m.routeTotal,
			m.routeDuration,
			m.handoffTotal,
			m.handoffDuration,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered forces metric registration; safe to call multiple times
func EnsureRegistered() {
	getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordRPC records an RPC request outcome and latency
func RecordRPC(method, outcome string, d time.Duration) {
	m := getMetrics()
	m.rpcRequestsTotal.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordResourceOp records a resource adapter operation
func RecordResourceOp(scheme, operation, outcome string) {
	getMetrics().resourceOpsTotal.WithLabelValues(scheme, operation, outcome).Inc()
}

// SetShortTermEntries updates the live short-term entry gauge
func SetShortTermEntries(n int) {
	getMetrics().shortTermEntries.Set(float64(n))
}

// RecordMemoryRead records a tier read duration
func RecordMemoryRead(tier string, d time.Duration) {
	getMetrics().memoryReadDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// RecordMemoryWrite records a tier write duration
func RecordMemoryWrite(tier string, d time.Duration) {
	getMetrics().memoryWriteDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// RecordConsolidationRun records one consolidation sweep promoting n contexts
func RecordConsolidationRun(promoted int) {
	m := getMetrics()
	m.consolidationRuns.Inc()
	m.consolidatedContexts.Add(float64(promoted))
}

// RecordRoute records a routed request outcome and duration
func RecordRoute(requestType, outcome string, d time.Duration) {
	m := getMetrics()
	m.routeTotal.WithLabelValues(requestType, outcome).Inc()
	m.routeDuration.WithLabelValues(requestType).Observe(d.Seconds())
}

// RecordHandoff records a handoff delivery outcome and duration
func RecordHandoff(outcome string, d time.Duration) {
	m := getMetrics()
	m.handoffTotal.WithLabelValues(outcome).Inc()
	m.handoffDuration.Observe(d.Seconds())
}

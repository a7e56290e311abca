package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Cycles counts optimization cycles by trigger and outcome (ok, empty, skipped, error)
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wasteroute_cycles_total", Help: "Optimization cycles by trigger and outcome."},
		[]string{"trigger", "outcome"},
	)
	// CycleDuration records full cycle wall time in seconds
	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "wasteroute_cycle_duration_seconds", Help: "Optimization cycle duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}},
		[]string{"trigger"},
	)
	RoutesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wasteroute_routes_created_total", Help: "Routes persisted by optimization cycles."},
	)
	RequestsRouted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wasteroute_requests_routed_total", Help: "Collection requests placed on a route."},
	)
	RequestsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wasteroute_requests_skipped_total", Help: "Pending requests skipped for missing coordinates."},
	)
	// OptimizerGain tracks relative distance saved per refined group, by algorithm
	OptimizerGain = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "wasteroute_optimizer_gain_ratio", Help: "Relative open-path distance saved by refinement.", Buckets: []float64{0, 0.01, 0.05, 0.1, 0.2, 0.3, 0.5}},
		[]string{"algorithm"},
	)
	RouteDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "wasteroute_route_distance_km", Help: "Open-path distance of planned routes in km.", Buckets: []float64{1, 2, 5, 10, 20, 50, 100}},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Cycles)
		Registry.MustRegister(CycleDuration)
		Registry.MustRegister(RoutesCreated)
		Registry.MustRegister(RequestsRouted)
		Registry.MustRegister(RequestsSkipped)
		Registry.MustRegister(OptimizerGain)
		Registry.MustRegister(RouteDistance)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

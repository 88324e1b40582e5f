package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
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

	// SolveDuration tracks end-to-end wave solve time by terminal status
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "wave_solve_duration_seconds", Help: "Wave solve duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120}},
		[]string{"status"},
	)
	// SolveStatus counts solves by terminal status
	SolveStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wave_solve_status_total", Help: "Wave solves by terminal status."},
		[]string{"status"},
	)
	// Fallbacks counts waves that ended on the fallback scheduler
	Fallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wave_fallback_total", Help: "Waves scheduled by the fallback path."},
	)
	// DegradedWalks counts walking-time estimates served from default values
	DegradedWalks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "walking_time_degraded_total", Help: "Walking-time estimates that used default durations for unknown bins."},
	)
	// WalkingMatrixSize reports the current walking matrix entry count
	WalkingMatrixSize = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "walking_matrix_entries", Help: "Entries in the walking-time matrix."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SolveStatus)
		Registry.MustRegister(Fallbacks)
		Registry.MustRegister(DegradedWalks)
		Registry.MustRegister(WalkingMatrixSize)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveSolve records one wave solve outcome.
func ObserveSolve(status string, d time.Duration) {
	SolveStatus.WithLabelValues(status).Inc()
	SolveDuration.WithLabelValues(status).Observe(d.Seconds())
}

// IncFallback counts a fallback-scheduled wave.
func IncFallback() { Fallbacks.Inc() }

// IncDegradedWalk counts a walking-time estimate degraded by missing bin data.
func IncDegradedWalk() { DegradedWalks.Inc() }

// SetWalkingMatrixSize updates the matrix entry gauge.
func SetWalkingMatrixSize(n int) { WalkingMatrixSize.Set(float64(n)) }

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/pool"
)

// Metrics holds the Prometheus collectors for the ledger, allocation runs and the HTTP API.
// All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	lockWait        *prometheus.HistogramVec
	adjustments     *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	placements      *prometheus.CounterVec
	exclusions      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ ledger.Observer = (*Metrics)(nil)

// New registers every collector on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autoroster_ledger_lock_wait_seconds",
		Help:    "Time spent waiting for the priority ledger lock",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"acquired"})

	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoroster_priority_adjustments_total",
		Help: "Priority adjustments applied, by mode",
	}, []string{"mode"})

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoroster_allocation_runs_total",
		Help: "Allocation runs, by policy",
	}, []string{"policy"})

	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoroster_placements_total",
		Help: "Candidates placed by allocation runs, by policy and state",
	}, []string{"policy", "state"})

	exclusions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoroster_exclusions_total",
		Help: "Commitment rows left out of the applicant pool, by reason",
	}, []string{"reason"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autoroster_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(lockWait, adjustments, allocations, placements, exclusions, requestDuration)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		lockWait:        lockWait,
		adjustments:     adjustments,
		allocations:     allocations,
		placements:      placements,
		exclusions:      exclusions,
		requestDuration: requestDuration,
	}
}

// Handler exposes the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry is exposed for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveLockWait(wait time.Duration, acquired bool) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(fmt.Sprint(acquired)).Observe(wait.Seconds())
}

func (m *Metrics) ObserveAdjustments(mode string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.adjustments.WithLabelValues(mode).Add(float64(count))
}

// ObserveAllocation counts one run and the states it assigned
func (m *Metrics) ObserveAllocation(policy allocator.Policy, counts allocator.Counts) {
	if m == nil {
		return
	}
	p := string(policy)
	m.allocations.WithLabelValues(p).Inc()
	m.placements.WithLabelValues(p, "rostered").Add(float64(counts.Rostered))
	m.placements.WithLabelValues(p, "waitlisted").Add(float64(counts.Waitlisted))
	m.placements.WithLabelValues(p, "rejected").Add(float64(counts.Rejected))
}

func (m *Metrics) ObserveExclusions(exclusions []pool.Exclusion) {
	if m == nil {
		return
	}
	for _, e := range exclusions {
		m.exclusions.WithLabelValues(string(e.Reason)).Inc()
	}
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, fmt.Sprint(status)).Observe(duration.Seconds())
}

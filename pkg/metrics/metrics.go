// Package metrics exposes the engine's Prometheus collectors on a
// dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	repairAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairctl",
			Subsystem: "synth",
			Name:      "attempts_total",
			Help:      "Total synthesis attempts grouped by outcome kind.",
		},
		[]string{"outcome"},
	)

	repairDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "repairctl",
			Subsystem: "synth",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of one synthesis attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"outcome"},
	)

	candidatesTried = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "repairctl",
			Subsystem: "synth",
			Name:      "candidates_tried",
			Help:      "Number of candidate patches tried per synthesis attempt.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"outcome"},
	)

	oracleChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairctl",
			Subsystem: "oracle",
			Name:      "checks_total",
			Help:      "Total oracle checks run, grouped by oracle id and result.",
		},
		[]string{"oracle", "result"},
	)

	oracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "repairctl",
			Subsystem: "oracle",
			Name:      "check_duration_seconds",
			Help:      "Duration of a single oracle check.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"oracle"},
	)

	bankLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairctl",
			Subsystem: "bank",
			Name:      "lookups_total",
			Help:      "Bank signature lookups grouped by hit/miss.",
		},
		[]string{"result"},
	)

	bankSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "repairctl",
			Subsystem: "bank",
			Name:      "entries",
			Help:      "Current number of entries held in the repair bank.",
		},
	)

	proposerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairctl",
			Subsystem: "proposer",
			Name:      "requests_total",
			Help:      "Requests made to the template proposer, grouped by status.",
		},
		[]string{"status"},
	)

	watcherRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairctl",
			Subsystem: "watcher",
			Name:      "runs_total",
			Help:      "Watch-mode scan runs, grouped by outcome.",
		},
		[]string{"outcome"},
	)

	opsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "repairctl",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight ops HTTP requests.",
		},
	)

	opsRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total ops HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		repairAttempts,
		repairDuration,
		candidatesTried,
		oracleChecks,
		oracleDuration,
		bankLookups,
		bankSize,
		proposerRequests,
		watcherRuns,
		opsInFlight,
		opsRequests,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRepairAttempt records the outcome and duration of one synthesis
// attempt, plus the number of candidates it tried.
func ObserveRepairAttempt(outcome string, seconds float64, candidates int) {
	repairAttempts.WithLabelValues(outcome).Inc()
	repairDuration.WithLabelValues(outcome).Observe(seconds)
	candidatesTried.WithLabelValues(outcome).Observe(float64(candidates))
}

// ObserveOracleCheck records one oracle evaluation.
func ObserveOracleCheck(oracleID string, ok bool, seconds float64) {
	result := "pass"
	if !ok {
		result = "fail"
	}
	oracleChecks.WithLabelValues(oracleID, result).Inc()
	oracleDuration.WithLabelValues(oracleID).Observe(seconds)
}

// ObserveBankLookup records a bank lookup hit or miss.
func ObserveBankLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	bankLookups.WithLabelValues(result).Inc()
}

// SetBankSize sets the current bank entry-count gauge.
func SetBankSize(n int) {
	bankSize.Set(float64(n))
}

// ObserveProposerRequest records a proposer call outcome (e.g. "ok",
// "malformed", "error").
func ObserveProposerRequest(status string) {
	proposerRequests.WithLabelValues(status).Inc()
}

// ObserveWatcherRun records one watch-mode scan outcome.
func ObserveWatcherRun(outcome string) {
	watcherRuns.WithLabelValues(outcome).Inc()
}

// InFlightHandler wraps h to track in-flight ops requests and per-request
// counters.
func InFlightHandler(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opsInFlight.Inc()
		defer opsInFlight.Dec()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rw, r)
		opsRequests.WithLabelValues(r.Method, path, http.StatusText(rw.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

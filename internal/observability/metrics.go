// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Dispatch metrics
	UnitsDispatched   *prometheus.CounterVec
	UnitsSucceeded    *prometheus.CounterVec
	UnitsFailed       *prometheus.CounterVec
	UnitsRateLimited  *prometheus.CounterVec
	FallbackDecisions *prometheus.CounterVec
	BackoffDelay      prometheus.Gauge
	OracleCallLatency *prometheus.HistogramVec

	// Cache metrics
	CacheResident  prometheus.Gauge
	CacheEvictions prometheus.Counter
	CacheMisses    prometheus.Counter

	// Swap metrics
	SwapsExecuted prometheus.Counter
	SwapsRejected *prometheus.CounterVec
	SwapVolumeSol prometheus.Counter

	// Scheduler metrics
	PhaseRotations  *prometheus.CounterVec
	PhaseDuration   *prometheus.HistogramVec
	RunsStarted     prometheus.Counter
	StallRecoveries prometheus.Counter

	// Social metrics
	MessagesPosted prometheus.Counter

	// Health metrics
	LastSuccessfulDispatch prometheus.Gauge
	UptimeSeconds          prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_agent_sim"
	}

	return &Metrics{
		// Dispatch metrics
		UnitsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "units_dispatched_total",
			Help:      "Total number of dispatch units issued by activity",
		}, []string{"activity"}),
		UnitsSucceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "units_succeeded_total",
			Help:      "Total number of dispatch units that succeeded by activity",
		}, []string{"activity"}),
		UnitsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "units_failed_total",
			Help:      "Total number of dispatch units that failed by activity",
		}, []string{"activity"}),
		UnitsRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "units_rate_limited_total",
			Help:      "Total number of dispatch units rejected by provider throttling",
		}, []string{"activity"}),
		FallbackDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "fallback_decisions_total",
			Help:      "Total number of decisions produced by the local fallback",
		}, []string{"activity"}),
		BackoffDelay: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "backoff_delay_seconds",
			Help:      "Current adaptive inter-call delay in seconds",
		}),
		OracleCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "call_latency_seconds",
			Help:      "Decision oracle call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"activity"}),

		// Cache metrics
		CacheResident: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "resident_instances",
			Help:      "Current number of live participant instances",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of instances evicted",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses requiring construction",
		}),

		// Swap metrics
		SwapsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amm",
			Name:      "swaps_executed_total",
			Help:      "Total number of confirmed swaps",
		}),
		SwapsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amm",
			Name:      "swaps_rejected_total",
			Help:      "Total number of rejected swaps by reason",
		}, []string{"reason"}),
		SwapVolumeSol: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amm",
			Name:      "swap_volume_sol_total",
			Help:      "Cumulative swap volume in SOL",
		}),

		// Scheduler metrics
		PhaseRotations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "phase_rotations_total",
			Help:      "Total number of phase rotations by phase",
		}, []string{"phase"}),
		PhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "phase_dispatch_duration_seconds",
			Help:      "Wall-clock duration of one phase dispatch",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"phase"}),
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_started_total",
			Help:      "Total number of simulation runs started",
		}),
		StallRecoveries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "stall_recoveries_total",
			Help:      "Total number of heartbeat-triggered phase re-runs",
		}),

		// Social metrics
		MessagesPosted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "messages_posted_total",
			Help:      "Total number of participant messages posted",
		}),

		// Health metrics
		LastSuccessfulDispatch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_dispatch_timestamp",
			Help:      "Unix timestamp of last successful dispatch activity",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDispatched increments the dispatched counter for an activity.
func RecordDispatched(activity string) {
	DefaultMetrics.UnitsDispatched.WithLabelValues(activity).Inc()
}

// RecordDispatchSuccess increments the succeeded counter for an activity.
func RecordDispatchSuccess(activity string) {
	DefaultMetrics.UnitsSucceeded.WithLabelValues(activity).Inc()
}

// RecordDispatchFailure increments the failed counter for an activity.
func RecordDispatchFailure(activity string) {
	DefaultMetrics.UnitsFailed.WithLabelValues(activity).Inc()
}

// RecordRateLimited increments the rate-limited counter for an activity.
func RecordRateLimited(activity string) {
	DefaultMetrics.UnitsRateLimited.WithLabelValues(activity).Inc()
}

// RecordFallbackDecision increments the fallback decision counter.
func RecordFallbackDecision(activity string) {
	DefaultMetrics.FallbackDecisions.WithLabelValues(activity).Inc()
}

// UpdateBackoffDelay updates the current adaptive delay gauge.
func UpdateBackoffDelay(seconds float64) {
	DefaultMetrics.BackoffDelay.Set(seconds)
}

// RecordOracleLatency records one oracle call latency.
func RecordOracleLatency(activity string, seconds float64) {
	DefaultMetrics.OracleCallLatency.WithLabelValues(activity).Observe(seconds)
}

// UpdateCacheResident updates the resident instance gauge.
func UpdateCacheResident(count int) {
	DefaultMetrics.CacheResident.Set(float64(count))
}

// RecordCacheEvictions adds to the eviction counter.
func RecordCacheEvictions(count int) {
	DefaultMetrics.CacheEvictions.Add(float64(count))
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordSwapExecuted records one confirmed swap and its SOL volume.
func RecordSwapExecuted(volumeSol float64) {
	DefaultMetrics.SwapsExecuted.Inc()
	DefaultMetrics.SwapVolumeSol.Add(volumeSol)
}

// RecordSwapRejected increments the rejection counter for a reason.
func RecordSwapRejected(reason string) {
	DefaultMetrics.SwapsRejected.WithLabelValues(reason).Inc()
}

// RecordPhaseRotation increments the rotation counter for a phase.
func RecordPhaseRotation(phase string) {
	DefaultMetrics.PhaseRotations.WithLabelValues(phase).Inc()
}

// RecordPhaseDuration records one phase dispatch duration.
func RecordPhaseDuration(phase string, seconds float64) {
	DefaultMetrics.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordRunStarted increments the runs started counter.
func RecordRunStarted() {
	DefaultMetrics.RunsStarted.Inc()
}

// RecordStallRecovery increments the stall recovery counter.
func RecordStallRecovery() {
	DefaultMetrics.StallRecoveries.Inc()
}

// RecordMessagePosted increments the messages posted counter.
func RecordMessagePosted() {
	DefaultMetrics.MessagesPosted.Inc()
}

// RecordDispatchActivity updates the last successful dispatch timestamp.
func RecordDispatchActivity(unixTime float64) {
	DefaultMetrics.LastSuccessfulDispatch.Set(unixTime)
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine state metrics
	BusyQueuesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bwf2q_busy_queues_total",
			Help: "Total number of currently backlogged leaf queues",
		},
	)

	RootVirtualTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bwf2q_root_virtual_time",
			Help: "Virtual time of the root scheduling node's highest-priority service tree",
		},
	)

	EntitiesByKind = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bwf2q_entities_total",
			Help: "Total number of entities attached to the hierarchy by kind and tree",
		},
		[]string{"kind", "tree"},
	)

	DistinctWeightsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bwf2q_distinct_weights_total",
			Help: "Number of distinct effective weight values currently in use",
		},
	)

	// Dispatch metrics
	DispatchedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bwf2q_dispatched_bytes_total",
			Help: "Total bytes charged via Served across all leaves",
		},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bwf2q_dispatch_latency_seconds",
			Help:    "Time taken by GetNextQueue to select the next leaf",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Starvation / idle-class metrics
	ForcedIdleClassPicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bwf2q_forced_idle_class_picks_total",
			Help: "Total number of times the idle priority class was force-selected to prevent starvation",
		},
	)

	// Timestamp-correction metrics
	BackshiftCorrectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bwf2q_backshift_corrections_total",
			Help: "Total number of times an activated entity's backshifted timestamps were pushed up to the service tree's virtual time",
		},
	)

	ChargeTimeInflationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bwf2q_charge_time_inflations_total",
			Help: "Total number of ChargeTime calls that inflated service beyond what was actually measured",
		},
	)

	WeightBoundsViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bwf2q_weight_bounds_violations_total",
			Help: "Total number of UpdateWeight calls whose requested weight had to be clamped into bounds",
		},
	)

	// Activation/deactivation metrics
	ActivationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bwf2q_activations_total",
			Help: "Total number of AddBusy calls",
		},
	)

	DeactivationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bwf2q_deactivations_total",
			Help: "Total number of DelBusy calls",
		},
	)
)

func init() {
	prometheus.MustRegister(BusyQueuesTotal)
	prometheus.MustRegister(RootVirtualTime)
	prometheus.MustRegister(EntitiesByKind)
	prometheus.MustRegister(DistinctWeightsTotal)
	prometheus.MustRegister(DispatchedBytesTotal)
	prometheus.MustRegister(DispatchLatency)
	prometheus.MustRegister(ForcedIdleClassPicksTotal)
	prometheus.MustRegister(BackshiftCorrectionsTotal)
	prometheus.MustRegister(ChargeTimeInflationsTotal)
	prometheus.MustRegister(WeightBoundsViolationsTotal)
	prometheus.MustRegister(ActivationsTotal)
	prometheus.MustRegister(DeactivationsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to one observer of a histogram
// vec, selected by label values.
func (t *Timer) ObserveDurationVec(histogramVec *prometheus.HistogramVec, labelValues ...string) {
	duration := time.Since(t.start).Seconds()
	histogramVec.WithLabelValues(labelValues...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

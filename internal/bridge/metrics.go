package bridge

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for submission outcomes.
const (
	outcomeFulfilled = "fulfilled"
	outcomeRejected  = "rejected"
	outcomeQueueFull = "queue_full"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadbridge_submissions_total",
			Help: "Total number of submitted operations by outcome.",
		},
		[]string{"outcome"},
	)

	opDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spreadbridge_op_duration_seconds",
			Help:    "Execution time of operations on the worker, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spreadbridge_queue_depth",
			Help: "Number of operations waiting in the task channel.",
		},
	)

	pumpTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spreadbridge_pump_total",
			Help: "Total number of idle-cycle pump invocations.",
		},
	)

	pumpFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spreadbridge_pump_failures_total",
			Help: "Total number of pump invocations that returned an error.",
		},
	)

	connectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spreadbridge_connect_attempts_total",
			Help: "Total number of venue handshake attempts.",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(opDuration)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(pumpTotal)
	prometheus.MustRegister(pumpFailures)
	prometheus.MustRegister(connectAttempts)

	// Pre-initialize outcome labels so they report 0 from startup.
	for _, o := range []string{outcomeFulfilled, outcomeRejected, outcomeQueueFull} {
		submissionsTotal.WithLabelValues(o)
	}
}

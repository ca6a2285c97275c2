package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(billingCallsTotal, billingCallDuration) }

var (
	billingCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_calls_total",
			Help:      "Calls to the billing service by operation and outcome.",
		},
		[]string{"op", "outcome"}, // outcome: ok|not_found|error
	)

	billingCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "billing_call_duration_seconds",
			Help:      "Billing service latency including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func ObserveBillingCall(op, outcome string, d time.Duration) {
	billingCallsTotal.WithLabelValues(norm(op), norm(outcome)).Inc()
	billingCallDuration.WithLabelValues(norm(op)).Observe(d.Seconds())
}

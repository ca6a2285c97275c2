package metrics

import (
	"subscription-api/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		accountTransitionsTotal,
		accountsCreatedTotal,
		accountsDeletedTotal,
		accountsTotal,
		paymentEventsTotal,
	)
}

var (
	accountTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_status_transitions_total",
			Help:      "Account status changes by source and target status.",
		},
		[]string{"from", "to"},
	)

	accountsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_created_total",
			Help:      "Accounts created by initial status.",
		},
		[]string{"status"},
	)

	accountsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_deleted_total",
			Help:      "Accounts deleted.",
		},
	)

	accountsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts",
			Help:      "Current number of accounts by status.",
		},
		[]string{"status"},
	)

	paymentEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_events_total",
			Help:      "Billing webhook deliveries by payment status and outcome.",
		},
		[]string{"payment_status", "outcome"}, // outcome: applied|ignored|rejected|error|reconciled
	)
)

func IncAccountTransition(from, to model.AccountStatus) {
	accountTransitionsTotal.WithLabelValues(norm(string(from)), norm(string(to))).Inc()
}

func IncAccountCreated(status model.AccountStatus) {
	accountsCreatedTotal.WithLabelValues(norm(string(status))).Inc()
}

func IncAccountDeleted() { accountsDeletedTotal.Inc() }

// SetAccountsTotal sets the gauge for every known status, zero when absent.
func SetAccountsTotal(counts map[model.AccountStatus]int) {
	for _, status := range model.AccountStatuses {
		accountsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func IncPaymentEvent(status model.PaymentStatus, outcome string) {
	paymentEventsTotal.WithLabelValues(norm(string(status)), norm(outcome)).Inc()
}

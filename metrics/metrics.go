// Package metrics exposes prometheus collectors for the lending ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutOutcomes counts coordinator calls by operation and outcome.
	CheckoutOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cabinetkey",
		Name:      "checkout_outcomes_total",
		Help:      "Borrow/return/force-return calls by outcome.",
	}, []string{"op", "outcome"})

	OverdueTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cabinetkey",
		Name:      "overdue_transitions_total",
		Help:      "Loans moved from active to overdue by the sweep.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cabinetkey",
		Name:      "overdue_sweep_seconds",
		Help:      "Wall time of one overdue sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cabinetkey",
		Name:      "notification_failures_total",
		Help:      "Overdue events the notification channel refused.",
	})
)

func ObserveCheckout(op, outcome string) {
	CheckoutOutcomes.WithLabelValues(op, outcome).Inc()
}

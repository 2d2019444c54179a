package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		checkoutOrdersTotal,
		paymentsRevenueTotal,
		paidButUnrecordedTotal,
		checkoutRejectedTotal,
	)
}

var (
	checkoutOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_orders_total",
			Help: "Orders by recorded status (pending/completed/failed) and outcome (success/error/dismiss).",
		},
		[]string{"status", "outcome"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed orders in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	paidButUnrecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_paid_but_unrecorded_total",
			Help: "Successful gateway callbacks whose order update could not be persisted.",
		},
	)

	// reason: identity|no_plan|in_flight|widget_unavailable|order_create|gateway|attach|widget_open
	checkoutRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_rejected_total",
			Help: "Pay attempts that stopped before the widget opened, by bounded reason.",
		},
		[]string{"reason"},
	)
)

func IncOrder(status, outcome string) {
	checkoutOrdersTotal.WithLabelValues(norm(status), norm(outcome)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncPaidButUnrecorded() { paidButUnrecordedTotal.Inc() }

func IncCheckoutRejected(reason string) {
	checkoutRejectedTotal.WithLabelValues(norm(reason)).Inc()
}

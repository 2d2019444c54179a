package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, checkoutSessionsOpen) }

var dbPoolStats = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_stats",
		Help: "Current state of the database connection pool.",
	},
	[]string{"state"}, // 'total', 'idle', 'in_use'
)

var checkoutSessionsOpen = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "checkout_sessions_open",
		Help: "In-memory checkout sessions currently held.",
	},
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func SetCheckoutSessions(n int) { checkoutSessionsOpen.Set(float64(n)) }

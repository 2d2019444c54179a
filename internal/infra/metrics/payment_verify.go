package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		referralVerifyTotal,
		remoteCallDuration,
		leadsTotal,
	)
}

var (
	// result: valid|invalid|error
	referralVerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_verifications_total",
			Help: "Referral code verifications by result.",
		},
		[]string{"result"},
	)

	// service: gateway|referral|identity|script; result: ok|fail
	remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_call_duration_seconds",
			Help:    "Latency of calls to external services in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"service", "op", "result"},
	)

	leadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_total",
			Help: "Captured public form submissions by kind and status.",
		},
		[]string{"kind", "status"},
	)
)

func IncReferralVerify(result string) {
	referralVerifyTotal.WithLabelValues(norm(result)).Inc()
}

// ObserveRemoteCall records one external call started at start.
func ObserveRemoteCall(service, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "fail"
	}
	remoteCallDuration.WithLabelValues(norm(service), norm(op), result).Observe(time.Since(start).Seconds())
}

func IncLead(kind, status string) {
	leadsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentVerifyTotal,
		paymentVerifyDuration,
	)
}

var (
	// result: ok|fail; reason (fail only): bad_signature|unknown_package|activation_failed|invalid_request
	paymentVerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_total",
			Help: "Payment confirmations by provider, result and reason.",
		},
		[]string{"provider", "result", "reason"},
	)

	paymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of payment confirmation in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"result"},
	)
)

func IncPaymentVerify(provider, result, reason string) {
	paymentVerifyTotal.WithLabelValues(norm(provider), norm(result), norm(reason)).Inc()
}

func ObservePaymentVerify(result string, seconds float64) {
	paymentVerifyDuration.WithLabelValues(norm(result)).Observe(seconds)
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		contactChecksTotal,
		contactRecordsTotal,
		quotaTxAttempts,
		quotaTxConflictsTotal,
	)
}

var (
	contactChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_checks_total",
			Help: "Advisory contact checks by outcome and reason.",
		},
		[]string{"allowed", "reason"},
	)

	contactRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_records_total",
			Help: "Contact recording attempts by result (counted|already_contacted|rejected|failed) and reason.",
		},
		[]string{"result", "reason"},
	)

	quotaTxAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quota_tx_attempts",
			Help:    "Transaction attempts needed per quota write.",
			Buckets: []float64{1, 2, 3, 5, 8},
		},
	)

	quotaTxConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_tx_conflicts_total",
			Help: "Per-user transactions aborted by contention and retried or surfaced.",
		},
	)
)

func IncContactCheck(allowed bool, reason string) {
	contactChecksTotal.WithLabelValues(strconv.FormatBool(allowed), norm(reason)).Inc()
}

func IncContactRecord(result, reason string) {
	contactRecordsTotal.WithLabelValues(norm(result), norm(reason)).Inc()
}

func ObserveTxAttempts(n int) {
	quotaTxAttempts.Observe(float64(n))
}

func IncTxConflict() {
	quotaTxConflictsTotal.Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionOpsTotal,
		catalogSyncTotal,
	)
}

var (
	subscriptionOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_ops_total",
			Help: "Subscription management operations by op (activate|extend|expire|cancel) and result.",
		},
		[]string{"op", "result"},
	)

	catalogSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_total",
			Help: "Package catalog mirror syncs by result.",
		},
		[]string{"result"},
	)
)

func IncSubscriptionOp(op string, success bool) {
	result := "ok"
	if !success {
		result = "fail"
	}
	subscriptionOpsTotal.WithLabelValues(norm(op), result).Inc()
}

func IncCatalogSync(result string) {
	catalogSyncTotal.WithLabelValues(norm(result)).Inc()
}

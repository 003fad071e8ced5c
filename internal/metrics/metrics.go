package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SettlementsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_settlements_completed_total",
			Help: "Number of confirmations settled successfully",
		},
	)

	SettlementsAlreadyProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_settlements_already_processed_total",
			Help: "Number of re-delivered confirmations short-circuited by idempotency",
		},
	)

	SettlementsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_settlements_failed_total",
			Help: "Number of confirmations that failed a fatal settlement step",
		},
	)

	SecondaryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_secondary_failures_total",
			Help: "Number of swallowed secondary-effect failures by effect",
		},
		[]string{"effect"},
	)

	PushDeliveryFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_push_failures_total",
			Help: "Number of per-recipient push deliveries that failed",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		SettlementsCompleted,
		SettlementsAlreadyProcessed,
		SettlementsFailed,
		SecondaryFailures,
		PushDeliveryFailures,
	)
}

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayErrorsTotal,
		gatewayVerifyDuration,
		webhooksTotal,
		reconciledTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (initiated/success/failed/abandoned/timeout).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	gatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_errors_total",
			Help: "Failed gateway calls by gateway and operation.",
		},
		[]string{"gateway", "op"},
	)

	gatewayVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of verify-by-reference calls to the gateway.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"gateway", "success"},
	)

	// result: accepted|ignored|invalid_signature|malformed|no_reference
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Inbound payment webhooks by handling result.",
		},
		[]string{"result"},
	)

	// kind: stale_pending|activation_retry
	reconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciled_total",
			Help: "Transactions fixed up by the background reconciler.",
		},
		[]string{"kind"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncGatewayError(gateway, op string) {
	gatewayErrorsTotal.WithLabelValues(norm(gateway), op).Inc()
}

func ObserveGatewayVerify(gateway string, success bool, d time.Duration) {
	gatewayVerifyDuration.WithLabelValues(norm(gateway), strconv.FormatBool(success)).Observe(d.Seconds())
}

func IncWebhook(result string) {
	webhooksTotal.WithLabelValues(result).Inc()
}

func AddReconciled(kind string, n int) {
	reconciledTotal.WithLabelValues(kind).Add(float64(n))
}

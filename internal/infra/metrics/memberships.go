package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		membershipsExpiredTotal,
		membershipsActivatedTotal,
		activationFailuresTotal,
	)
}

var (
	membershipsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memberships_expired_total",
			Help: "Total number of memberships moved to expired by sweeps.",
		},
	)

	membershipsActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memberships_activated_total",
			Help: "Total number of memberships activated by a confirmed payment.",
		},
	)

	activationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_failures_total",
			Help: "Successful payments whose membership activation failed, by confirmation source.",
		},
		[]string{"source"},
	)
)

func IncMembershipsExpired(count int) {
	membershipsExpiredTotal.Add(float64(count))
}

func IncMembershipActivated() {
	membershipsActivatedTotal.Inc()
}

func IncActivationFailure(source string) {
	activationFailuresTotal.WithLabelValues(source).Inc()
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, lockAttemptsTotal) }

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks cache hits and misses for various caches.",
		},
		[]string{"cache", "result"}, // e.g., cache="plan", result="hit"
	)

	lockAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_lock_attempts_total",
			Help: "Distributed lock attempts by result (acquired|busy|error).",
		},
		[]string{"result"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func IncLockAttempt(result string) {
	lockAttemptsTotal.WithLabelValues(norm(result)).Inc()
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	statusChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkhub",
			Name:      "status_changed_total",
			Help:      "Count of manual status changes by new status.",
		},
		[]string{"status"},
	)

	resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkhub",
			Name:      "resolve_total",
			Help:      "Count of status resolutions by effective status.",
		},
		[]string{"status"},
	)

	overrideOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkhub",
			Name:      "override_ops_total",
			Help:      "Count of override operations by kind.",
		},
		[]string{"op"},
	)

	concurrencyConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parkhub",
			Name:      "concurrency_conflicts_total",
			Help:      "Count of detected lost updates on status rows.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkhub",
			Name:      "http_requests_total",
			Help:      "Count of admin API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(statusChanged, resolveTotal, overrideOps, concurrencyConflicts, httpRequests)
	})
}

func IncStatusChanged(status string) {
	statusChanged.WithLabelValues(status).Inc()
}

func IncResolve(status string) {
	resolveTotal.WithLabelValues(status).Inc()
}

func IncOverrideOp(op string) {
	overrideOps.WithLabelValues(op).Inc()
}

func IncConcurrencyConflict() {
	concurrencyConflicts.Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

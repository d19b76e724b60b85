// Package metrics provides Prometheus metrics for the StakeSave service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PlanOperationsTotal tracks plan operations by name and outcome
	PlanOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stakesave",
			Subsystem: "plans",
			Name:      "operations_total",
			Help:      "Total number of plan operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// PenaltiesDeducted tracks slashed stake credited to reward pools
	PenaltiesDeducted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stakesave",
			Subsystem: "pool",
			Name:      "credited_total",
			Help:      "Amount credited to reward pools by penalties and forfeits",
		},
		[]string{"asset", "reason"},
	)

	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stakesave",
			Subsystem: "plans",
			Name:      "payouts_total",
			Help:      "Amount paid out to owners of completed plans",
		},
		[]string{"asset"},
	)

	EventsPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stakesave",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Plan events that could not be published",
		},
	)

	// HTTPRequestDuration tracks inbound request duration by route pattern
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stakesave",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route", "status_code"},
	)
)

func RecordOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PlanOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordHTTP(method, route string, status int, started time.Time) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(started).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}

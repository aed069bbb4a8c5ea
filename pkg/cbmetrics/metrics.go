// Package cbmetrics provides Prometheus instrumentation for backup orchestration.
package cbmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cloudsqlbackup"

// result label values
const (
	AttemptSucceeded      = "succeeded"
	AttemptNotDone        = "not_done"
	AttemptInitiateFailed = "initiate_failed"
	AttemptCheckFailed    = "check_failed"

	AlertPublished = "published"
	AlertFailed    = "failed"
)

type Metrics struct {
	// Attempts counts initiate+check cycles, including the immediate first one.
	Attempts *prometheus.CounterVec
	// Invocations counts workflow results.
	Invocations *prometheus.CounterVec
	// Alerts counts alert publish results.
	Alerts *prometheus.CounterVec
	// BackoffSeconds accumulates time spent waiting between initiate and check.
	BackoffSeconds prometheus.Counter
}

// New registers the collectors with reg. use prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of backup initiate+check cycles.",
		}, []string{"result"}),
		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of handled backup events, by result.",
		}, []string{"result"}),
		Alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of failure alerts, by publish result.",
		}, []string{"result"}),
		BackoffSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backoff_seconds_total",
			Help:      "Total time spent in backoff waits.",
		}),
	}
}

// Discard returns metrics that are not registered anywhere
func Discard() *Metrics {
	return New(nil)
}

func (m *Metrics) ObserveBackoff(d time.Duration) {
	m.BackoffSeconds.Add(d.Seconds())
}

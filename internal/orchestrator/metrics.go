package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/imamik/daas/internal/model"
)

var (
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daas",
			Subsystem: "orchestrator",
			Name:      "actions_total",
			Help:      "Total number of server actions by result",
		},
		[]string{"action", "result"},
	)

	phaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daas",
			Subsystem: "orchestrator",
			Name:      "phase_transitions_total",
			Help:      "Total number of confirmed phase steps",
		},
		[]string{"action", "phase"},
	)

	activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "daas",
			Subsystem: "orchestrator",
			Name:      "active_workers",
			Help:      "Number of servers with a running worker",
		},
	)

	actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daas",
			Subsystem: "orchestrator",
			Name:      "action_duration_seconds",
			Help:      "Duration of server actions in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
		},
		[]string{"action"},
	)
)

func init() {
	metrics.Registry.MustRegister(actionsTotal, phaseTransitions, activeWorkers, actionDuration)
}

const (
	resultSucceeded   = "succeeded"
	resultFailed      = "failed"
	resultInterrupted = "interrupted"
)

func recordAction(action model.Action, result string, started time.Time) {
	actionsTotal.WithLabelValues(string(action), result).Inc()
	actionDuration.WithLabelValues(string(action)).Observe(time.Since(started).Seconds())
}

func recordPhase(action model.Action, phase model.Phase) {
	phaseTransitions.WithLabelValues(string(action), phase.String()).Inc()
}

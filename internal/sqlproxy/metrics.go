package sqlproxy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	resultSucceeded        = "succeeded"
	resultFailed           = "failed"
	resultResolutionFailed = "resolution_failed"
)

var (
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daas",
			Subsystem: "sqlproxy",
			Name:      "batches_total",
			Help:      "SQL batches executed by kind and outcome",
		},
		[]string{"kind", "result"},
	)

	statementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daas",
			Subsystem: "sqlproxy",
			Name:      "statement_duration_seconds",
			Help:      "Duration of individual statements",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"kind"},
	)
)

func init() {
	metrics.Registry.MustRegister(batchesTotal, statementDuration)
}

func recordBatch(kind batchKind, result string) {
	batchesTotal.WithLabelValues(string(kind), result).Inc()
}

func observeStatement(kind batchKind, d time.Duration) {
	statementDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

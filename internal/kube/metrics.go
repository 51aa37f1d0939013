package kube

import (
	"github.com/prometheus/client_golang/prometheus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var requestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "daas",
		Subsystem: "kube",
		Name:      "requests_total",
		Help:      "Total number of control-plane requests by kind, verb and result",
	},
	[]string{"kind", "verb", "result"},
)

func init() {
	metrics.Registry.MustRegister(requestsTotal)
}

func observeRequest(kind Kind, verb string, err error) {
	result := "success"
	switch {
	case err == nil:
	case apierrors.IsNotFound(err):
		result = "not_found"
	case apierrors.IsAlreadyExists(err):
		result = "conflict"
	default:
		result = "error"
	}
	requestsTotal.WithLabelValues(string(kind), verb, result).Inc()
}

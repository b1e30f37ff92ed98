package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charla_backend_requests_total",
		Help: "Generate calls attempted per backend.",
	}, []string{"provider"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charla_backend_failures_total",
		Help: "Generate calls that failed per backend.",
	}, []string{"provider"})

	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charla_fallback_replies_total",
		Help: "Replies served by the canned fallback responder.",
	})
)

package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	graphRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messenger",
			Name:      "graph_requests_total",
			Help:      "Total Graph API requests.",
		},
		[]string{"endpoint", "result"}, // result: "ok", "api_error", "transport_error"
	)

	graphRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "messenger",
			Name:      "graph_request_duration_seconds",
			Help:      "Duration of HTTP requests to the Graph API.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

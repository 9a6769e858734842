package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messenger",
			Name:      "delivery_outcomes_total",
			Help:      "Total fallback-aware deliveries by final method and result.",
		},
		[]string{"method", "result"}, // result: "success", "failed", "tag_denied", "upload_failed"
	)

	deliveryDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "messenger",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of fallback-aware deliveries including uploads.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"}, // "send", "upload_and_send", "direct_send"
	)

	directSendsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messenger",
			Name:      "direct_sends_total",
			Help:      "Total single-attempt sends that bypass the fallback ladder.",
		},
		[]string{"tag", "result"}, // tag is "none" for standard sends; result: "success", "failed"
	)

	natsJobsReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messenger",
			Name:      "nats_jobs_received_total",
			Help:      "Total NATS send jobs received.",
		},
		[]string{"subject"},
	)

	jobsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messenger",
			Name:      "jobs_processed_total",
			Help:      "Total send jobs processed.",
		},
		[]string{"status"}, // "delivered", "failed", "invalid"
	)
)

package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nearme_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nearme_operation_duration_seconds",
			Help:    "Duration of timed service and repository operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_operation_errors_total",
			Help: "Number of timed operations that returned an error",
		},
		[]string{"op"},
	)

	FeedRecomputations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearme_feed_recomputations_total",
			Help: "Number of proximity feed rankings published",
		},
	)

	FeedOutputSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nearme_feed_output_posts",
			Help:    "Number of posts in each published proximity feed",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nearme_live_feed_sessions",
			Help: "Number of open live feed sessions",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_events_published_total",
			Help: "Domain events handed to the broker, labeled by routing key and outcome",
		},
		[]string{"routing_key", "outcome"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canvas_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"method", "path"},
	)

	// Channel metrics
	ChannelConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_channel_connections",
			Help: "Currently joined channel members on this instance",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_broadcasts_total",
			Help: "Broadcast events relayed, by event name",
		},
		[]string{"event"},
	)

	DroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_dropped_events_total",
			Help: "Outbound envelopes dropped because a member queue was full",
		},
		[]string{"type"},
	)

	PresenceSyncs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_presence_syncs_total",
			Help: "Presence snapshots pushed to rooms",
		},
	)

	// Collaborator metrics
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_uploads_total",
			Help: "Image uploads by result",
		},
		[]string{"result"},
	)

	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_generations_total",
			Help: "Image generations by result",
		},
		[]string{"result"},
	)

	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canvas_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)

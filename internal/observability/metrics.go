package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "bookings_created_total", Help: "Bookings persisted in ASSIGNING_DRIVER"})
	OffersPublished = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "offers_published_total", Help: "Ride offers broadcast to driver sessions"})
	IndexErrors     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "index_errors_total", Help: "Driver index queries degraded to zero candidates"})
	LocationUpdates = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "location_updates_total", Help: "Driver location reports applied to the index"})

	DecisionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "decisions_processed_total", Help: "Ride decisions by outcome"},
		[]string{"outcome"},
	)

	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "ws_sessions", Help: "Connected websocket sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

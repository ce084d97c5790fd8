package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersReceived = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_agent", Name: "offers_received_total", Help: "Ride offers received over the realtime channel"})
	OffersDecided  = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "driver_agent", Name: "offers_decided_total", Help: "Terminal offer outcomes"},
		[]string{"outcome"},
	)
	OffersDiscarded = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_agent", Name: "offers_discarded_total", Help: "Offers discarded as malformed"})
	DecisionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "driver_agent",
		Name:      "offer_decision_seconds",
		Help:      "Time from presentation to terminal decision",
		Buckets:   prometheus.LinearBuckets(0, 5, 8),
	})

	RequestAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "driver_agent", Name: "request_attempts_total", Help: "Backend request attempts by logical operation"},
		[]string{"op"},
	)
	FallbacksServed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "driver_agent", Name: "fallbacks_served_total", Help: "Requests answered from the last-good cache"},
		[]string{"op"},
	)

	ChannelReconnects = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_agent", Name: "channel_reconnects_total", Help: "Realtime channel reconnection attempts"})
	EventsDropped     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_agent", Name: "events_dropped_total", Help: "Outbound events dropped while disconnected"})

	AvailabilityToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "driver_agent", Name: "availability_toggles_total", Help: "Availability toggles by result"},
		[]string{"result"},
	)
	DriverOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "driver_agent", Name: "online", Help: "1 while the driver is online"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "driver_agent", Name: "http_requests_total", Help: "Local diagnostics API requests"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "driver_agent",
			Name:      "http_request_duration_seconds",
			Help:      "Local diagnostics API latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

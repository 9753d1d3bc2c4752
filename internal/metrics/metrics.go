package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// League lifecycle metrics
	// ============================================
	LeagueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_league_operations_total",
			Help: "Total number of league state transitions",
		},
		[]string{"operation"},
	)

	LeagueOperationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_league_operation_rejections_total",
			Help: "Total number of rejected league operations",
		},
		[]string{"operation", "reason"},
	)

	LeaguesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backend_leagues_by_status",
			Help: "Number of leagues per derived lifecycle status",
		},
		[]string{"status"},
	)

	PrizesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_prizes_claimed_total",
		Help: "Total number of successful prize claims",
	})

	// ============================================
	// Oracle bridge metrics
	// ============================================
	OracleRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_oracle_requests_sent_total",
		Help: "Total number of score update requests dispatched to the provider",
	})

	OracleFulfillments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_oracle_fulfillments_total",
			Help: "Total number of oracle fulfillments by outcome",
		},
		[]string{"outcome"},
	)

	OraclePendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_oracle_pending_requests",
		Help: "Number of outstanding oracle requests",
	})

	OracleFulfillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backend_oracle_fulfill_duration_seconds",
		Help:    "Fulfillment processing duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ============================================
	// Database connection metrics
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// NATS connection and message metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_nats_messages_published_total",
			Help: "Total number of NATS event messages published",
		},
		[]string{"event_type"},
	)

	NATSPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_nats_publish_failures_total",
			Help: "Total number of failed NATS publishes",
		},
		[]string{"event_type"},
	)
)

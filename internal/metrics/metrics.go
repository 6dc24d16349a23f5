package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_intents_created_total",
			Help: "Total number of intents created, by type",
		},
		[]string{"type"},
	)

	GatewayFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_gateway_failures_total",
			Help: "Total number of failed gateway order creations",
		},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_gateway_duration_seconds",
			Help:    "Gateway API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	Settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_settlements_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"outcome"},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_signature_failures_total",
			Help: "Payment proofs rejected by signature verification",
		},
	)

	AuditDivergence = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_audit_divergence_total",
			Help: "Settlements where the audit ledger update failed",
		},
	)

	ReconciliationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_reconciliation_actions_total",
			Help: "Reconciliation outcomes by action",
		},
		[]string{"action"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_notifications_total",
			Help: "Notifications dispatched by result",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveGateway records the latency of a gateway call.
func ObserveGateway(operation string, start time.Time) {
	GatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// GinMiddleware records request count and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

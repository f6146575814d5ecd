package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoice_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoice_register_total",
			Help: "Total number of registration attempts",
		},
	)

	// Invoice operation counter
	InvoiceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_operations_total",
			Help: "Total number of invoice operations",
		},
		[]string{"operation"}, // operation can be "create", "edit", "mark_paid", "delete", "list", "pdf", "email"
	)

	// Client operation counter
	ClientOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_client_operations_total",
			Help: "Total number of client operations",
		},
		[]string{"operation"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "invalid_token", "user_not_found", "invalid_password" etc.
	)

	// Email delivery counter
	EmailCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_emails_total",
			Help: "Total number of dispatched emails by outcome",
		},
		[]string{"kind", "outcome"}, // outcome is "sent" or "failed"
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoice_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoice_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// PDF render duration
	PDFRenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoice_pdf_render_duration_seconds",
			Help:    "Duration of invoice PDF rendering in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Gauge metrics
var (
	// Queued emails
	EmailQueueGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoice_email_queue_depth",
			Help: "Number of emails currently waiting in the dispatch queue",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "invoice_info",
			Help: "Information about the invoice service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(InvoiceOperationCounter)
	prometheus.MustRegister(ClientOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(EmailCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(PDFRenderDuration)

	// Register gauges
	prometheus.MustRegister(EmailQueueGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordAuthError increments the auth error counter for the given type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordInvoiceOperation increments the invoice operation counter
func RecordInvoiceOperation(operation string) {
	InvoiceOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordClientOperation increments the client operation counter
func RecordClientOperation(operation string) {
	ClientOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordEmail increments the email counter for a kind/outcome pair
func RecordEmail(kind, outcome string) {
	EmailCounter.With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

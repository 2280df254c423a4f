package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kistudio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kistudio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	upstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kistudio",
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Outbound calls to AI and storage providers",
		},
		[]string{"service", "status"},
	)

	pollAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kistudio",
			Subsystem: "image",
			Name:      "poll_attempts_total",
			Help:      "Polling attempts against asynchronous image jobs",
		},
		[]string{"provider"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kistudio",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, upstreamCallsTotal, pollAttemptsTotal, rateLimitedTotal)
}

// Middleware instrumenta cada request usando la ruta registrada en gin como etiqueta.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// FullPath evita etiquetas de alta cardinalidad (ids en la URL).
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(path, c.Request.Method, status).Inc()
		httpRequestDuration.WithLabelValues(path, c.Request.Method, status).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpstream registra una llamada saliente. status 0 significa error de red.
func ObserveUpstream(service string, status int) {
	upstreamCallsTotal.WithLabelValues(service, strconv.Itoa(status)).Inc()
}

func IncPollAttempt(provider string) {
	pollAttemptsTotal.WithLabelValues(provider).Inc()
}

func IncRateLimited(scope string) {
	if scope == "" {
		scope = "unspecified"
	}
	rateLimitedTotal.WithLabelValues(scope).Inc()
}

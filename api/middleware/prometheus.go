package middleware

import (
	"errors"
	"schoolchat/services"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "service"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	chatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of real-time events processed",
		},
		[]string{"event", "status"},
	)

	chatEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_ws_event_duration_seconds",
			Help:    "Duration of real-time event handling in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"event"},
	)

	chatEventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_errors_total",
			Help: "Total number of real-time event errors",
		},
		[]string{"event", "error_type"},
	)
)

func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
			serviceName,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			serviceName,
		).Observe(duration)
	}
}

// errorType сводит ошибку к ограниченному набору меток
func errorType(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidEvent):
		return "invalid_event"
	case errors.Is(err, services.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, services.ErrAuthenticationFailed):
		return "authentication_failed"
	default:
		return "unknown"
	}
}

// RecordChatEvent учитывает обработку одного события websocket
func RecordChatEvent(event string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		chatEventErrors.WithLabelValues(event, errorType(err)).Inc()
	}
	chatEventsTotal.WithLabelValues(event, status).Inc()
	chatEventDuration.WithLabelValues(event).Observe(duration.Seconds())
}

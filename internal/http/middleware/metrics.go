// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the HTTP Prometheus collectors. Labels are the method, the
// registered route (e.g. /api/v1/sessions/:id/messages, or "unmatched") and
// the status code, which keeps cardinality bounded. Event streams stay open
// for the length of an answer and are timed in their own histogram so they
// do not skew request latency.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of non-streaming HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// face-scan uploads reach several MiB; JSON answers stay small
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"method", "path"},
	)

	httpStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_sse_streams_inflight",
			Help: "Current number of open server-sent-event streams.",
		},
	)

	httpStreamDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_sse_stream_duration_seconds",
			Help:    "Duration of server-sent-event responses in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"path"},
	)

	httpRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, httpStreams, httpStreamDur, httpRateLimited)
}

// TrackStream marks an event stream as open; call the returned func when
// it ends.
func TrackStream() (done func()) {
	httpStreams.Inc()
	return httpStreams.Dec
}

// Metrics instruments every request. Mount /metrics with promhttp next to
// it.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := metricPath(c)
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		if isEventStream(c) {
			httpStreamDur.WithLabelValues(path).Observe(dur)
		} else {
			httpLat.WithLabelValues(method, path).Observe(dur)
		}
		// -1 when nothing was written
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

func metricPath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

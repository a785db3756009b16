// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds request correlation, access logging and panic recovery:
//
//   - RequestID() reuses a well-formed X-Request-ID or mints a UUID, and
//     echoes it on the response.
//   - Logger() is the verbose development access log. Every line carries the
//     route, the caller and, for event streams, the fact that latency covers
//     the whole answer.
//   - Recovery() turns a panic into the JSON error envelope unless the
//     response (for example an event stream) has already started.
//   - LoggerFrom() returns the request-scoped logger both loggers attach.
//
// Probe routes (/health, /metrics) log at debug.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxQueryLogRunes caps the logged query string.
	maxQueryLogRunes = 512
)

// requestIDRE accepts ids from upstream proxies; anything else is replaced.
var requestIDRE = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,128}$`)

// quietRoutes are logged at debug.
var quietRoutes = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// RequestID attaches a correlation id to the request, the Gin context
// ("requestID") and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if !requestIDRE.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one access log line per request and exposes a
// request-scoped logger to handlers. Query strings are logged as sent, so
// use RedactingLogger outside local development.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := routeOf(c)

		l := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("user_id", userIDFromCtx(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		ev := accessEvent(&l, c, route)
		ev = ev.
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogRunes)).
			Int64("bytes_in", c.Request.ContentLength)
		if id := c.Param("id"); id != "" {
			ev = ev.Str("resource_id", id)
		}
		ev.
			Int("status", c.Writer.Status()).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("stream", isEventStream(c)).
			Msg("request")
	}
}

// accessEvent picks the level for a finished request: error for 5xx or
// recorded Gin errors, warn for 4xx, debug for probes, info otherwise.
func accessEvent(l *zerolog.Logger, c *gin.Context, route string) *zerolog.Event {
	status := c.Writer.Status()
	switch {
	case len(c.Errors) > 0:
		return l.Error().Str("errors", c.Errors.String())
	case status >= 500:
		return l.Error()
	case status >= 400:
		return l.Warn()
	}
	if _, ok := quietRoutes[route]; ok {
		return l.Debug()
	}
	return l.Info()
}

// Recovery logs a panic with its stack and answers 500 with the error
// envelope. A response already in flight is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Str("route", routeOf(c)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// no access logger ran. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// RequestIDFrom returns the correlation id set by RequestID, falling back
// to the response header.
func RequestIDFrom(c *gin.Context) string {
	if rid := c.GetString(requestIDKey); rid != "" {
		return rid
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// routeOf is the matched route pattern, or the raw path for 404s.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

func isEventStream(c *gin.Context) bool {
	return strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")
}

// truncate keeps at most max runes of s and marks the cut with an ellipsis.
// max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}

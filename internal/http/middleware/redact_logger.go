// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds RedactingLogger, the access log used outside local
// development. Bodies are never logged, so prompts, journal reflections and
// camera frames stay out of the logs. The query string and headers are
// scrubbed of emails, phone numbers and UUIDs; credential headers and
// free-text query parameters are masked outright.
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Api-Key"},
//	    MaskQuery:   []string{"q"},
//	}))
package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

// RedactOptions adds headers (case-insensitive, on top of Authorization,
// Cookie and Set-Cookie) and query parameters whose values are replaced
// with "[REDACTED]".
type RedactOptions struct {
	MaskHeaders []string
	MaskQuery   []string
}

// Applied in order. UUIDs go first so the loose phone pattern cannot eat
// their digit groups.
var piiPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

type redactor struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	r := &redactor{
		headers: lowerSet("authorization", "cookie", "set-cookie"),
		params:  lowerSet(opts.MaskQuery...),
	}
	for k := range lowerSet(opts.MaskHeaders...) {
		r.headers[k] = struct{}{}
	}
	return r
}

func lowerSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func (r *redactor) scrub(s string) string {
	for _, p := range piiPatterns {
		if s == "" {
			break
		}
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// maskQuery replaces the values of masked parameters in a raw query and
// leaves every other pair as sent.
func (r *redactor) maskQuery(raw string) string {
	if raw == "" || len(r.params) == 0 {
		return raw
	}
	pairs := strings.Split(raw, "&")
	for i, pair := range pairs {
		name, _, _ := strings.Cut(pair, "=")
		if dec, err := url.QueryUnescape(name); err == nil {
			name = dec
		}
		if _, ok := r.params[strings.ToLower(name)]; ok {
			pairs[i] = name + "=" + redacted
		}
	}
	return strings.Join(pairs, "&")
}

func (r *redactor) headerDict(h http.Header) *zerolog.Event {
	d := zerolog.Dict()
	for k, vv := range h {
		if _, ok := r.headers[strings.ToLower(k)]; ok {
			d.Str(k, redacted)
			continue
		}
		d.Str(k, r.scrub(strings.Join(vv, ", ")))
	}
	return d
}

// RedactingLogger writes one scrubbed access line ("http_request") per
// request at the same levels as Logger and attaches the request-scoped
// logger. Only the route pattern is logged: raw paths carry session ids.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	rd := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()
		route := routeOf(c)
		query := truncate(rd.scrub(rd.maskQuery(c.Request.URL.RawQuery)), maxQueryLogRunes)
		headers := rd.headerDict(c.Request.Header)

		l := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("user_id", userIDFromCtx(c)).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		accessEvent(&l, c, route).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("stream", isEventStream(c)).
			Dict("headers", headers).
			Msg("http_request")
	}
}

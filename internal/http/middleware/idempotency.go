// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on writes. A valid key is
// recorded on the context together with the scope it applies to (a session
// id or the resource name). When a lookup reports a stored snapshot for
// (user, scope, key) the request is flagged as a replay and exempted from
// rate limiting. Handlers serve and record the snapshots themselves.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdem       = "idem"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 200
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// idemState is what IdempotencyValidator leaves on the context.
type idemState struct {
	key    string
	scope  string
	replay bool
}

func idemFrom(c *gin.Context) (idemState, bool) {
	v, ok := c.Get(ctxKeyIdem)
	if !ok {
		return idemState{}, false
	}
	st, ok := v.(idemState)
	return st, ok
}

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	st, ok := idemFrom(c)
	return st.key, ok && st.key != ""
}

// IsReplay reports whether a snapshot already exists for this request.
func IsReplay(c *gin.Context) bool {
	st, _ := idemFrom(c)
	return st.replay
}

// IdempotencyScope names the operation a key belongs to: the :id path
// parameter when the route has one (a session), otherwise the last static
// segment of the matched route ("activities").
func IdempotencyScope(c *gin.Context) string {
	if st, ok := idemFrom(c); ok && st.scope != "" {
		return st.scope
	}
	if id := c.Param("id"); id != "" {
		return id
	}
	route := c.FullPath()
	if route == "" && c.Request != nil {
		route = c.Request.URL.Path
	}
	route = strings.TrimRight(route, "/")
	return route[strings.LastIndexByte(route, '/')+1:]
}

// IdempotencyOptions bounds accepted keys. Zero values pick a 200 byte limit
// and a token-like character set.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether an unexpired snapshot exists. Errors are
// treated as a miss.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator checks the key on unsafe methods and answers 400 with
// the error envelope when it is too long or malformed. Safe methods and
// requests without the header pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		st := idemState{key: key, scope: IdempotencyScope(c)}
		if lookup != nil {
			hit, err := lookup(c.Request.Context(), userIDFromCtx(c), st.scope, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Debug().Err(err).Msg("idempotency lookup failed")
			}
			st.replay = err == nil && hit
		}
		c.Set(ctxKeyIdem, st)
		if st.replay {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// userIDFromCtx is the caller set by Identity, or "demo-user".
func userIDFromCtx(c *gin.Context) string {
	if uid := c.GetString("userID"); uid != "" {
		return uid
	}
	return "demo-user"
}

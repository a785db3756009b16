package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func postWithKey(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyAccessors_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/today/water", nil)

	if k, ok := GetIdempotencyKey(c); ok || k != "" {
		t.Fatalf("key present without middleware: %q", k)
	}
	if IsReplay(c) {
		t.Fatalf("replay without middleware")
	}
	if got := IdempotencyScope(c); got != "water" {
		t.Fatalf("scope from raw path = %q", got)
	}
	c.Set(ctxKeyIdem, "not-a-state")
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("foreign value must read as absent")
	}

	if got := userIDFromCtx(c); got != "demo-user" {
		t.Fatalf("fallback user = %q", got)
	}
	c.Set("userID", 42)
	if got := userIDFromCtx(c); got != "demo-user" {
		t.Fatalf("non-string user = %q", got)
	}
	c.Set("userID", "u1")
	if got := userIDFromCtx(c); got != "u1" {
		t.Fatalf("user = %q", got)
	}
}

func TestIdempotencyValidator_Rejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"default limit", IdempotencyOptions{}, strings.Repeat("k", 201)},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
		{"spaces", IdempotencyOptions{}, "a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID())
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/journal", func(c *gin.Context) { c.Status(http.StatusCreated) })

			w := postWithKey(r, "/journal", tc.key)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["request_id"] == "" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_PassThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		calls++
		return true, nil
	}
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	handler := func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key stashed on a pass-through request")
		}
		c.Status(http.StatusNoContent)
	}
	r.POST("/activities", handler)
	r.GET("/today", handler)

	if w := postWithKey(r, "/activities", ""); w.Code != http.StatusNoContent {
		t.Fatalf("no header: status=%d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/today", nil)
	req.Header.Set(HeaderIdempotencyKey, "bad key !")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("GET with key must be ignored: status=%d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("lookup called %d times", calls)
	}
}

func TestIdempotencyValidator_Lookup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type seen struct{ user, scope, key string }
	cases := []struct {
		name       string
		path, want string
		user       string
		hit        bool
		err        error
		replay     bool
	}{
		{"miss scoped by session", "/sessions/c42/messages", "c42", "", false, nil, false},
		{"hit scoped by resource", "/api/v1/activities", "activities", "u9", true, nil, true},
		{"error is a miss", "/api/v1/activities", "activities", "u9", true, errors.New("db down"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got seen
			r := gin.New()
			if tc.user != "" {
				r.Use(func(c *gin.Context) { c.Set("userID", tc.user); c.Next() })
			}
			r.Use(IdempotencyValidator(IdempotencyOptions{}, func(_ context.Context, uid, scope, key string, now time.Time) (bool, error) {
				if now.IsZero() {
					t.Fatalf("zero lookup time")
				}
				got = seen{uid, scope, key}
				return tc.hit, tc.err
			}))
			h := func(c *gin.Context) {
				if IsReplay(c) != tc.replay || IsRateBypass(c) != tc.replay {
					t.Fatalf("replay=%v bypass=%v, want %v", IsReplay(c), IsRateBypass(c), tc.replay)
				}
				if k, _ := GetIdempotencyKey(c); k != "k-9" {
					t.Fatalf("key = %q", k)
				}
				if IdempotencyScope(c) != tc.want {
					t.Fatalf("scope = %q", IdempotencyScope(c))
				}
				c.Status(http.StatusOK)
			}
			r.POST("/sessions/:id/messages", h)
			r.POST("/api/v1/activities", h)

			if w := postWithKey(r, tc.path, "k-9"); w.Code != http.StatusOK {
				t.Fatalf("status=%d", w.Code)
			}
			wantUser := tc.user
			if wantUser == "" {
				wantUser = "demo-user"
			}
			if got != (seen{wantUser, tc.want, "k-9"}) {
				t.Fatalf("lookup args = %+v", got)
			}
		})
	}
}

package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
	"github.com/tbourn/go-wellness-backend/internal/chatstream"
	"github.com/tbourn/go-wellness-backend/internal/config"
	"github.com/tbourn/go-wellness-backend/internal/http/middleware"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/search"
)

// --- canned chat gateway ---
type echoChat struct{}

func (echoChat) Stream(_ context.Context, req chatstream.Request, onDelta func(string)) ([]chatstream.Message, error) {
	if onDelta != nil {
		onDelta("Breathe ")
		onDelta("in.")
	}
	return append(req.Messages, chatstream.Message{Role: chatstream.RoleAssistant, Content: "Breathe in."}), nil
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:router_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath:      base,
		RateRPS:          100,
		RateBurst:        20,
		Location:         time.UTC,
		ChatHistoryLimit: 20,
		IdempotencyTTL:   time.Hour,
		OTEL:             config.OTELConfig{ServiceName: "test-svc"},
		FaceScan:         config.FaceScanConfig{Passes: 1, MaxUpload: 8 << 20},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, search.NewIndex(catalog.Documents()), Upstreams{Chat: echoChat{}}, cfg)
	return r, db
}

func serve(r *gin.Engine, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.HeaderUserID, "u1")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig("/api/v1"))

	// /health works
	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w := serve(r, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w := serve(r, http.MethodPost, "/health", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = serve(r, http.MethodGet, "/health", "", "Origin", "http://evil.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin echoed: %q", got)
	}
}

func TestRegisterRoutes_WellnessFlow(t *testing.T) {
	r, _ := newRouter(t, testConfig("/api/v1"))

	w := serve(r, http.MethodPost, "/api/v1/profile", `{"name":"Asha","age":30}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("onboard status=%d body=%s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/today", "")
	if w.Code != http.StatusOK {
		t.Fatalf("today status=%d", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("wellness state must not be cached, Cache-Control=%q", got)
	}

	w = serve(r, http.MethodGet, "/api/v1/content/poses", "")
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "max-age") {
		t.Fatalf("poses should be cacheable, Cache-Control=%q", got)
	}
	if pp := w.Header().Get("Permissions-Policy"); !strings.Contains(pp, "camera=(self)") {
		t.Fatalf("camera must stay allowed for the scanner: %q", pp)
	}
}

func TestRegisterRoutes_Compression(t *testing.T) {
	r, _ := newRouter(t, testConfig("/api/v1"))

	w := serve(r, http.MethodGet, "/api/v1/content/poses", "", "Accept-Encoding", "gzip")
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip JSON, headers=%v", w.Header())
	}

	w = serve(r, http.MethodPost, "/api/v1/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create session status=%d", w.Code)
	}
	id := strings.SplitN(strings.SplitN(w.Body.String(), `"id":"`, 2)[1], `"`, 2)[0]

	w = serve(r, http.MethodPost, "/api/v1/sessions/"+id+"/messages", `{"content":"hello"}`,
		"Accept", "text/event-stream", "Accept-Encoding", "gzip")
	if w.Code != http.StatusOK {
		t.Fatalf("stream status=%d body=%s", w.Code, w.Body.String())
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("event stream must not be compressed, got %q", enc)
	}
	if !strings.Contains(w.Body.String(), "event:done") {
		t.Fatalf("stream body:\n%s", w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader; /big is allowed more
	r.Use(limitBody(10, map[string]int64{"/big": 100}))
	echo := func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	}
	r.POST("/echo", echo)
	r.POST("/big", echo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/big", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusOK {
		t.Fatalf("override ignored, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	// non-root prefix
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig("/")
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // only set on https
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/today", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /today = %d body=%s", w.Code, w.Body.String())
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}
}

func TestRegisterRoutes_IdempotentReplay(t *testing.T) {
	r, _ := newRouter(t, testConfig("/api/v1"))
	body := `{"type":"yoga","minutes":10}`

	first := serve(r, http.MethodPost, "/api/v1/activities", body, middleware.HeaderIdempotencyKey, "key-1")
	if first.Code != http.StatusOK {
		t.Fatalf("first status=%d body=%s", first.Code, first.Body.String())
	}
	second := serve(r, http.MethodPost, "/api/v1/activities", body, middleware.HeaderIdempotencyKey, "key-1")
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("expected replay, headers=%v", second.Header())
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	// oversized keys are rejected by the validator
	long := strings.Repeat("k", 201)
	if w := serve(r, http.MethodPost, "/api/v1/activities", body, middleware.HeaderIdempotencyKey, long); w.Code != http.StatusBadRequest {
		t.Fatalf("long key expected 400, got %d", w.Code)
	}
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	cfg := testConfig("/api/v1")
	r, db := newRouter(t, cfg)

	// force queries to fail by closing the underlying connection
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// a lookup error counts as a miss; POST /health is still 405
	w := serve(r, http.MethodPost, "/health", "{}", middleware.HeaderIdempotencyKey, "force-error")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_FaceScanWithoutClassifier(t *testing.T) {
	r, _ := newRouter(t, testConfig("/api/v1"))

	// no CLASSIFIER_URL: reads still work
	w := serve(r, http.MethodGet, "/api/v1/face-scans/latest", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("latest without scans expected 404, got %d", w.Code)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
	"github.com/tbourn/go-wellness-backend/internal/chatstream"
	"github.com/tbourn/go-wellness-backend/internal/facescan"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/search"
	"github.com/tbourn/go-wellness-backend/internal/services"
	"github.com/tbourn/go-wellness-backend/internal/store"
	"github.com/tbourn/go-wellness-backend/internal/wellness"
)

// ---------- test plumbing ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:handlers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// scriptedChat answers every prompt with frags. When failStatus is set it
// behaves like the gateway client on a non-2xx answer.
type scriptedChat struct {
	frags      []string
	failStatus int
	calls      atomic.Int32
}

const rateLimitNotice = "Rate limit exceeded. Please wait a moment."

func (s *scriptedChat) Stream(ctx context.Context, req chatstream.Request, onDelta func(string)) ([]chatstream.Message, error) {
	s.calls.Add(1)
	out := append([]chatstream.Message(nil), req.Messages...)
	if s.failStatus != 0 {
		out = append(out, chatstream.Message{Role: chatstream.RoleAssistant, Content: rateLimitNotice, Failed: true})
		return out, &chatstream.UpstreamError{Status: s.failStatus, Message: rateLimitNotice, Err: errors.New("upstream refused")}
	}
	var b strings.Builder
	for _, f := range s.frags {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if onDelta != nil {
			onDelta(f)
		}
		b.WriteString(f)
	}
	return append(out, chatstream.Message{Role: chatstream.RoleAssistant, Content: b.String()}), nil
}

type testEnv struct {
	db   *gorm.DB
	well *wellness.Service
	chat *scriptedChat
	h    *Handlers
	r    *gin.Engine
}

// newEnv wires real services over a fresh in-memory database.
func newEnv(t *testing.T, chat *scriptedChat, cls facescan.Classifier) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if chat == nil {
		chat = &scriptedChat{frags: []string{"Take a slow ", "breath."}}
	}
	db := newTestDB(t)
	well := wellness.NewService(store.NewGorm(db), time.UTC)
	h := New(Deps{
		Sessions: services.NewSessionService(db, services.GormSessionRepo{}, well),
		Messages: &services.MessageService{DB: db, Chat: chat, Wellness: well, HistoryLimit: 50, MaxPromptRunes: 200},
		Content: &services.ContentService{Index: search.NewIndex(catalog.Documents(),
			search.WithMinTextRunes(0), search.WithMinScore(0.05))},
		Wellness:   well,
		Classifier: cls,
		ScanConfig: facescan.Config{Passes: 3},
		DB:         db,
	})
	r := gin.New()
	mount(r.Group(""), h)
	return &testEnv{db: db, well: well, chat: chat, h: h, r: r}
}

func mount(g *gin.RouterGroup, h *Handlers) {
	g.POST("/profile", h.Onboard)
	g.GET("/profile", h.GetProfile)
	g.GET("/suggestions", h.Suggestions)
	g.GET("/today", h.GetToday)
	g.POST("/today/water", h.AddWater)
	g.PUT("/today/sleep", h.SetSleep)
	g.PUT("/today/mood", h.SetMood)
	g.POST("/activities", h.RecordActivity)
	g.POST("/poses/:id/complete", h.CompletePose)
	g.GET("/trends", h.Trends)
	g.POST("/journal", h.SaveJournal)
	g.GET("/journal", h.ListJournal)
	g.GET("/journal/streak", h.JournalStreak)
	g.POST("/face-scans", h.CreateFaceScan)
	g.GET("/face-scans/latest", h.LatestFaceScan)
	g.GET("/face-scans", h.ListFaceScans)
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions", h.ListSessions)
	g.PUT("/sessions/:id/title", h.UpdateSessionTitle)
	g.POST("/sessions/:id/messages", h.PostMessage)
	g.GET("/sessions/:id/messages", h.ListMessages)
	g.GET("/content/search", h.SearchContent)
	g.GET("/content/poses", h.ListPoses)
}

// do sends a request as user "u1" unless hdr overrides X-User-ID.
func (e *testEnv) do(method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", "u1")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v; body=%s", err, w.Body.String())
	}
	return v
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d; body=%s", w.Code, status, w.Body.String())
	}
	resp := decode[ErrorResponse](t, w)
	if resp.Code != code {
		t.Fatalf("code=%q want %q", resp.Code, code)
	}
}

// ---------- shared helpers ----------

func TestUserID_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := userID(c); got != "demo-user" {
		t.Fatalf("default=%q", got)
	}
	c.Request.Header.Set("X-User-ID", " hdr ")
	if got := userID(c); got != "hdr" {
		t.Fatalf("header=%q", got)
	}
	c.Set("userID", "ctx")
	if got := userID(c); got != "ctx" {
		t.Fatalf("context=%q", got)
	}
}

func TestClampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		q        string
		page, ps int
	}{
		{"", 1, 20},
		{"?page=-3&page_size=9999", 1, 100},
		{"?page=&page_size=0", 1, 1},
		{"?page=4&page_size=7", 4, 7},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tc.q, nil)
		p, ps := clampPagination(c)
		if p != tc.page || ps != tc.ps {
			t.Fatalf("%q: got %d,%d want %d,%d", tc.q, p, ps, tc.page, tc.ps)
		}
	}
}

func TestNewPagination(t *testing.T) {
	p := newPagination(2, 10, 25)
	if p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("got %+v", p)
	}
	p = newPagination(1, 20, 0)
	if p.TotalPages != 0 || p.HasNext {
		t.Fatalf("empty: %+v", p)
	}
}

func TestCheckETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := time.UnixMilli(1700000000123)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if checkETag(c, "sessions", "u1", 3, &ts) {
		t.Fatalf("no If-None-Match must not complete the response")
	}
	etag := w.Header().Get("ETag")
	if etag != `W/"sessions:u1:3:1700000000123"` {
		t.Fatalf("etag=%q", etag)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("If-None-Match", etag)
	if !checkETag(c, "sessions", "u1", 3, &ts) {
		t.Fatalf("matching tag must complete the response")
	}
	c.Writer.WriteHeaderNow()
	if w.Code != http.StatusNotModified {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestIdempotencyKey_HeaderFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	if _, ok := idempotencyKey(c); ok {
		t.Fatalf("no key expected")
	}
	c.Request.Header.Set("Idempotency-Key", "k-1")
	if k, ok := idempotencyKey(c); !ok || k != "k-1" {
		t.Fatalf("key=%q ok=%v", k, ok)
	}
}

func TestRemember_NoDBStillWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(Deps{})
	if h.idemTTL != 24*time.Hour {
		t.Fatalf("default ttl=%v", h.idemTTL)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}"))
	c.Request.Header.Set("Idempotency-Key", "k")
	h.remember(c, http.StatusOK, gin.H{"a": 1})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"a":1`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if h.replay(c) {
		t.Fatalf("replay without DB must be a no-op")
	}
}

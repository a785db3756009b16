// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, caller identity, logging/redaction, panic
// recovery, metrics, compression, CORS, security headers, idempotency, and
// rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → identity → logging → recovery)
//   - Deterministic router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-wellness-backend/docs"
	"github.com/tbourn/go-wellness-backend/internal/chatstream"
	"github.com/tbourn/go-wellness-backend/internal/config"
	"github.com/tbourn/go-wellness-backend/internal/facescan"
	"github.com/tbourn/go-wellness-backend/internal/http/handlers"
	"github.com/tbourn/go-wellness-backend/internal/http/middleware"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/search"
	"github.com/tbourn/go-wellness-backend/internal/services"
	"github.com/tbourn/go-wellness-backend/internal/store"
	"github.com/tbourn/go-wellness-backend/internal/wellness"
)

// Upstreams are the external AI services. Nil fields are built from
// cfg.Upstream; a classifier without CLASSIFIER_URL stays nil and face
// scans answer 503.
type Upstreams struct {
	Chat       services.Streamer
	Classifier facescan.Classifier
}

// upstreamRoutes call the AI services and get a tighter per-route budget.
var upstreamRoutes = []string{"/sessions/:id/messages", "/face-scans"}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity: validate X-User-ID
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter (larger cap for face-scan uploads)
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS, security headers and gzip (not on the event stream)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, idx search.Index, up Upstreams, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	if apiBase == "/" {
		apiBase = ""
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Caller identity
	r.Use(middleware.Identity())

	// 4) Structured logging; verbose unredacted access logs only for local
	// pretty output
	if cfg.LogPretty {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
			MaskQuery:   []string{"q"},
		}))
	}

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Body size limit: 1 MiB, face-scan uploads get FACESCAN_MAX_UPLOAD
	r.Use(limitBody(1<<20, map[string]int64{
		apiBase + "/face-scans": cfg.FaceScan.MaxUpload,
	}))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiters: per user/IP overall, and per user and
	// route at half the rate for routes that call the AI services
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())
	upstream := make([]string, len(upstreamRoutes))
	for i, p := range upstreamRoutes {
		upstream[i] = apiBase + p
	}
	upLimiter := middleware.NewRateLimiter(cfg.RateRPS/2, max(cfg.RateBurst/2, 1), middleware.KeyByUserAndRoute())
	r.Use(upLimiter.Only(http.MethodPost, upstream...))

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS). The
	// face scanner runs in the browser, so the camera stays allowed for
	// same-origin pages.
	security := middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		AllowCamera:  true,
	}
	r.Use(middleware.SecurityHeaders(security))

	// Compression for JSON; the event stream must not be buffered.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
		gzip.WithExcludedPathsRegexs([]string{`/sessions/[^/]+/messages$`}),
	))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/index/upstreams
	if up.Chat == nil {
		up.Chat = chatstream.NewClient(cfg.Upstream.ChatGatewayURL, cfg.Upstream.APIKey, cfg.Upstream.Timeout)
	}
	if up.Classifier == nil && cfg.Upstream.ClassifierURL != "" {
		up.Classifier = facescan.NewHTTPClassifier(cfg.Upstream.ClassifierURL, cfg.Upstream.APIKey, cfg.Upstream.Timeout)
	}
	wellSvc := wellness.NewService(store.NewGorm(db), cfg.Location)
	sessSvc := services.NewSessionService(db, services.GormSessionRepo{}, wellSvc)
	msgSvc := &services.MessageService{
		DB:             db,
		Chat:           up.Chat,
		Wellness:       wellSvc,
		HistoryLimit:   cfg.ChatHistoryLimit,
		MaxPromptRunes: 2000,
		TitleMaxLen:    60,
		TitleLocale:    language.English,
	}
	contentSvc := &services.ContentService{Index: idx}

	h := handlers.New(handlers.Deps{
		Sessions: sessSvc,
		Messages: msgSvc,
		Content:  contentSvc,
		Wellness: wellSvc,

		Classifier: up.Classifier,
		ScanConfig: facescan.Config{
			Frames:   cfg.FaceScan.Frames,
			Interval: cfg.FaceScan.Interval,
			Passes:   cfg.FaceScan.Passes,
			Parallel: cfg.FaceScan.Parallel,
		},

		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Sessions and the companion
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions", h.ListSessions)
		api.PUT("/sessions/:id/title", h.UpdateSessionTitle)
		api.GET("/sessions/:id/messages", h.ListMessages)
		api.POST("/sessions/:id/messages", h.PostMessage)

		// Guided content
		api.GET("/content/search", h.SearchContent)
		api.GET("/content/poses", h.ListPoses)
	}

	// Per-user wellness state is never cached.
	security.NoStore = true
	state := api.Group("", middleware.SecurityHeaders(security))
	{
		// Profile
		state.POST("/profile", h.Onboard)
		state.GET("/profile", h.GetProfile)
		state.GET("/suggestions", h.Suggestions)

		// Today
		state.GET("/today", h.GetToday)
		state.POST("/today/water", h.AddWater)
		state.PUT("/today/sleep", h.SetSleep)
		state.PUT("/today/mood", h.SetMood)
		state.POST("/activities", h.RecordActivity)
		state.POST("/poses/:id/complete", h.CompletePose)
		state.GET("/trends", h.Trends)

		// Journal
		state.POST("/journal", h.SaveJournal)
		state.GET("/journal", h.ListJournal)
		state.GET("/journal/streak", h.JournalStreak)

		// Face scans
		state.POST("/face-scans", h.CreateFaceScan)
		state.GET("/face-scans/latest", h.LatestFaceScan)
		state.GET("/face-scans", h.ListFaceScans)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader, or to overrides[route] for the listed
// routes. Requests exceeding the cap will cause downstream body reads to
// error.
func limitBody(maxBytes int64, overrides map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if n, ok := overrides[c.FullPath()]; ok && n > 0 {
			limit = n
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

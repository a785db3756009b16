// Package handlers exposes the public REST API.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses (including
// conditional and replayed responses). Every endpoint is scoped to the
// caller's user id.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/facescan"
	"github.com/tbourn/go-wellness-backend/internal/http/middleware"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/search"
	"github.com/tbourn/go-wellness-backend/internal/services"
	"github.com/tbourn/go-wellness-backend/internal/trend"
	"github.com/tbourn/go-wellness-backend/internal/utils"
	"github.com/tbourn/go-wellness-backend/internal/wellness"
)

//
// Service contracts (context-aware)
//

// SessionService defines companion session lifecycle operations.
type SessionService interface {
	// Create starts a session for userID and seeds the companion greeting.
	Create(ctx context.Context, userID, title string) (*services.Created, error)
	// ListPage returns a page of sessions for a user and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Session, int64, error)
	// UpdateTitle renames a session that belongs to userID.
	UpdateTitle(ctx context.Context, userID, sessionID, title string) error
}

// MessageService defines companion message operations.
type MessageService interface {
	// Send streams the companion's answer through onDelta and stores the turn.
	Send(ctx context.Context, userID, sessionID, prompt string, onDelta func(string)) (*services.Reply, error)
	// ListPage returns a page of messages within a session and the total count.
	ListPage(ctx context.Context, userID, sessionID string, page, pageSize int) ([]domain.Message, int64, error)
}

// ContentService searches guided content.
type ContentService interface {
	Search(ctx context.Context, q, kind string, limit int) ([]search.Result, error)
}

// WellnessService owns per-user wellness state.
type WellnessService interface {
	Onboard(ctx context.Context, userID string, in wellness.OnboardingInput) (domain.UserProfile, error)
	Profile(ctx context.Context, userID string) (domain.UserProfile, error)
	Suggestions(ctx context.Context, userID string) ([]catalog.Suggestion, error)

	Today(ctx context.Context, userID string) (wellness.Snapshot, error)
	AddWater(ctx context.Context, userID string) (wellness.Snapshot, error)
	SetSleepHours(ctx context.Context, userID string, hours float64) (wellness.Snapshot, error)
	SetMood(ctx context.Context, userID string, mood int) (wellness.Snapshot, error)
	RecordActivity(ctx context.Context, userID string, kind domain.Activity, minutes int) (wellness.Snapshot, error)
	CompletePose(ctx context.Context, userID, poseID string) (wellness.PoseResult, error)
	Trends(ctx context.Context, userID string, rangeDays int) (trend.Summary, error)

	SaveJournal(ctx context.Context, userID string, in wellness.JournalInput) (domain.JournalEntry, error)
	Journal(ctx context.Context, userID string) ([]domain.JournalEntry, error)
	JournalStreak(ctx context.Context, userID string) (int, error)

	RecordFaceScan(ctx context.Context, userID string, f domain.FaceSignal) (wellness.FaceScanResult, error)
	LatestFace(ctx context.Context, userID string) (domain.FaceSignal, bool, error)
	FaceHistory(ctx context.Context, userID string, n int) ([]domain.FaceSignal, error)
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. Nil services leave their routes
// answering 500; a nil DB disables idempotent replay.
type Deps struct {
	Sessions SessionService
	Messages MessageService
	Content  ContentService
	Wellness WellnessService

	// Classifier and ScanConfig drive POST /face-scans.
	Classifier facescan.Classifier
	ScanConfig facescan.Config

	// DB stores idempotency snapshots; IdempotencyTTL bounds their life.
	DB             *gorm.DB
	IdempotencyTTL time.Duration
}

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	sessSvc    SessionService
	msgSvc     MessageService
	contentSvc ContentService
	wellSvc    WellnessService

	classifier facescan.Classifier
	scanCfg    facescan.Config

	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		sessSvc:    d.Sessions,
		msgSvc:     d.Messages,
		contentSvc: d.Content,
		wellSvc:    d.Wellness,
		classifier: d.Classifier,
		scanCfg:    d.ScanConfig,
		db:         d.DB,
		idemTTL:    ttl,
	}
}

// userID extracts the caller's user id from Gin context (set by the identity
// middleware). If absent, it falls back to the "X-User-ID" header (tests use
// it), and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader(middleware.HeaderUserID)); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = max(1, utils.AtoiDefault(c.Query("page"), defaultPage))
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// checkETag sets a weak ETag built from (kind, owner, count, newest
// timestamp) and answers 304 when If-None-Match matches. It reports whether
// the response is complete.
func checkETag(c *gin.Context, kind, owner string, count int64, maxTS *time.Time) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixMilli()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, owner, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// idempotencyKey returns the key stashed by the validator middleware, or the
// raw header when no middleware ran.
func idempotencyKey(c *gin.Context) (string, bool) {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}

// replay answers the request from a stored idempotency snapshot. It reports
// whether it did.
func (h *Handlers) replay(c *gin.Context) bool {
	key, ok := idempotencyKey(c)
	if !ok || h.db == nil {
		return false
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), h.db, userID(c), middleware.IdempotencyScope(c), key, time.Now().UTC())
	if err != nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	c.Data(rec.Status, "application/json; charset=utf-8", rec.Response)
	return true
}

// remember stores body as the snapshot for the request's idempotency key
// (best effort), then writes it.
func (h *Handlers) remember(c *gin.Context, status int, body any) {
	if key, ok := idempotencyKey(c); ok && h.db != nil {
		if b, err := json.Marshal(body); err == nil {
			_, err = repo.CreateIdempotency(c.Request.Context(), h.db, userID(c), middleware.IdempotencyScope(c), key, status, b, h.idemTTL)
			if err != nil && !errors.Is(err, repo.ErrDuplicate) {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency snapshot not stored")
			}
		}
	}
	ok(c, status, body)
}

// failWellness maps wellness and trend errors onto the envelope.
func failWellness(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wellness.ErrProfileNotFound):
		fail(c, http.StatusNotFound, ErrCodeProfileRequired, "profile not found; complete onboarding first")
	case errors.Is(err, wellness.ErrUnknownPose):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "pose not found")
	case errors.Is(err, wellness.ErrInvalidActivity),
		errors.Is(err, wellness.ErrInvalidMinutes),
		errors.Is(err, wellness.ErrInvalidProfile),
		errors.Is(err, wellness.ErrEmptyReflection),
		errors.Is(err, wellness.ErrInvalidDate),
		errors.Is(err, wellness.ErrFutureDate),
		errors.Is(err, wellness.ErrInvalidFaceScan),
		errors.Is(err, trend.ErrInvalidRange):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

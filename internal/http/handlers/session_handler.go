// Session HTTP handlers.
//
// This file exposes REST endpoints for companion sessions:
//   - POST   /sessions               (create, returns the greeting)
//   - GET    /sessions               (list, paginated, ETag support)
//   - PUT    /sessions/{id}/title    (rename)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/services"
)

// CreateSessionRequest is the JSON payload for creating a session.
type CreateSessionRequest struct {
	// Title optionally sets the session title; a default is used when empty.
	Title string `json:"title" example:"Evening check-in"`
}

// UpdateSessionTitleRequest is the JSON payload for renaming a session.
type UpdateSessionTitleRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255" example:"Sleep worries"`
}

// ListSessionsResponse wraps a page of sessions and pagination information.
type ListSessionsResponse struct {
	Sessions   []domain.Session `json:"sessions"`
	Pagination Pagination       `json:"pagination"`
}

// CreateSession godoc
// @ID          createSession
// @Summary     Start a companion session
// @Description Creates a session for the current user and stores the companion's greeting,
// @Description which reflects today's mood and activity when a profile exists.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateSessionRequest  false  "Create session payload"
// @Success     201  {object}  services.Created
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	out, err := h.sessSvc.Create(c.Request.Context(), userID(c), strings.TrimSpace(req.Title))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, out)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List sessions (paginated)
// @Description Returns a page of the user's sessions. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListSessionsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if svc, isGorm := h.sessSvc.(*services.SessionService); isGorm && svc.DB != nil {
		if count, maxTS, err := repo.SessionsStats(ctx, svc.DB, uid); err == nil {
			if checkETag(c, "sessions", uid, count, maxTS) {
				return
			}
		}
	}

	items, total, err := h.sessSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListSessionsResponse{
		Sessions:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// UpdateSessionTitle godoc
// @ID          updateSessionTitle
// @Summary     Rename a session
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.UpdateSessionTitleRequest  true  "New title"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions/{id}/title [put]
func (h *Handlers) UpdateSessionTitle(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}
	var req UpdateSessionTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required")
		return
	}
	err := h.sessSvc.UpdateTitle(c.Request.Context(), userID(c), id, req.Title)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
	}
}

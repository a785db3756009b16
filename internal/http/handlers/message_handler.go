// Message HTTP handlers.
//
// This file exposes REST endpoints for companion messages:
//   - POST /sessions/{id}/messages   (send a prompt, relay the companion's answer)
//   - GET  /sessions/{id}/messages   (list paginated messages for a session)
//
// POST answers as server-sent events when the client asks for
// text/event-stream (or ?stream=1): one "delta" event per fragment, an
// "error" event when the gateway failed, and a final "done" event carrying
// the stored turn. Otherwise the whole turn is returned as JSON, and an
// Idempotency-Key replays a previous JSON result.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/http/middleware"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/services"
	"github.com/tbourn/go-wellness-backend/internal/sysutil"
)

// SSE event names.
const (
	EventDelta = "delta"
	EventError = "error"
	EventDone  = "done"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a user message.
//
// Content is normalized by the handler (line endings and excessive blank lines)
// before being passed to the service layer.
type PostMessageRequest struct {
	// Content is the user prompt. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"I couldn't sleep well last night"`
}

// PostMessageResponse is one stored exchange. Failed is set when the
// companion could not answer; the last assistant message then carries the
// notice shown to the user.
type PostMessageResponse struct {
	User      *domain.Message  `json:"user"`
	Assistant []domain.Message `json:"assistant"`
	Title     string           `json:"title,omitempty"`
	Failed    bool             `json:"failed"`
}

// DeltaEvent is the payload of a "delta" event.
type DeltaEvent struct {
	Content string `json:"content"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxPromptRunes inspects the concrete MessageService for a configured
// prompt-length limit. If unavailable, it returns a conservative fallback.
func discoverMaxPromptRunes(msgSvc MessageService) int {
	const fallback = 4000
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxPromptRunes > 0 {
			return ms.MaxPromptRunes
		}
	}
	return fallback
}

// wantsStream reports whether the client asked for server-sent events.
func wantsStream(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	return sysutil.IsTruthy(c.Query("stream"))
}

func toResponse(r *services.Reply) PostMessageResponse {
	return PostMessageResponse{User: r.User, Assistant: r.Assistant, Title: r.Title, Failed: r.Failed()}
}

// notice is the text of the fallback turn of a failed reply.
func notice(r *services.Reply) string {
	if n := len(r.Assistant); n > 0 {
		return r.Assistant[n-1].Content
	}
	return ""
}

// failSend maps MessageService errors that occur before anything was written.
func failSend(c *gin.Context, err error, maxRunes int) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
	case errors.Is(err, services.ErrEmptyPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, err.Error())
	}
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Talk to the companion
// @Description Appends a user message to the session and relays the companion's answer.
// @Description With `Accept: text/event-stream` the answer is streamed as `delta` events followed by `done`.
// @Description JSON requests support idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Produce     text/event-stream
//
// @Param       X-User-ID        header  string  false "User ID that owns the session"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Session ID (UUID)"              format(uuid)
// @Param       stream           query   bool    false "Stream the answer as server-sent events"
// @Param       body             body    handlers.PostMessageRequest  true  "User message payload"
//
// @Success     200  {object}  handlers.PostMessageResponse  "Stored exchange"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /sessions/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxPromptRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	if wantsStream(c) {
		h.streamMessage(c, sessionID, content, maxRunes)
		return
	}

	if h.replay(c) {
		return
	}
	reply, err := h.msgSvc.Send(c.Request.Context(), userID(c), sessionID, content, nil)
	if err != nil {
		if c.Request.Context().Err() != nil {
			c.Abort()
			return
		}
		failSend(c, err, maxRunes)
		return
	}
	if reply.Failed() {
		// failed turns are not snapshotted; a retry reaches the gateway again
		ok(c, http.StatusOK, toResponse(reply))
		return
	}
	h.remember(c, http.StatusOK, toResponse(reply))
}

// streamMessage relays the answer as server-sent events. Errors raised
// before the first fragment are still answered with the JSON envelope.
func (h *Handlers) streamMessage(c *gin.Context, sessionID, content string, maxRunes int) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}
	done := middleware.TrackStream()
	defer done()

	reply, err := h.msgSvc.Send(ctx, userID(c), sessionID, content, func(frag string) {
		start()
		emit(c, EventDelta, DeltaEvent{Content: frag})
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			lg.Debug().Str("session_id", sessionID).Msg("stream closed by client")
			c.Abort()
		case !started:
			failSend(c, err, maxRunes)
		default:
			lg.Error().Err(err).Str("session_id", sessionID).Msg("stream failed after first fragment")
			emit(c, EventError, ErrorResponse{
				RequestID: middleware.RequestIDFrom(c),
				Code:      ErrCodeAnswerFailed,
				Message:   "the answer could not be stored",
			})
		}
		return
	}

	start()
	if reply.Failed() {
		emit(c, EventError, ErrorResponse{
			RequestID: middleware.RequestIDFrom(c),
			Code:      ErrCodeAnswerFailed,
			Message:   notice(reply),
		})
	}
	emit(c, EventDone, toResponse(reply))
}

// emit writes one event and flushes it to the client.
func emit(c *gin.Context, event string, data any) {
	c.Render(-1, sse.Event{Event: event, Data: data})
	c.Writer.Flush()
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a session
// @Description Returns a paginated list of messages for the given session, oldest first.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       id             path    string  true  "Session ID (UUID)"  format(uuid)
// @Param       page           query   int     false "Page number"        minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"     minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	sessionID := c.Param("id")

	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.msgSvc.ListPage(ctx, uid, sessionID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	// ListPage has checked ownership.
	if svc, isGorm := h.msgSvc.(*services.MessageService); isGorm && svc.DB != nil {
		if count, maxTS, err := repo.MessagesStats(ctx, svc.DB, sessionID); err == nil {
			if checkETag(c, "messages", sessionID, count, maxTS) {
				return
			}
		}
	}

	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

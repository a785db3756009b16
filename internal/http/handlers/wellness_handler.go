// Wellness HTTP handlers.
//
// This file exposes the per-user wellness state:
//   - POST /profile, GET /profile, GET /suggestions
//   - GET  /today, POST /today/water, PUT /today/sleep, PUT /today/mood
//   - POST /activities (Idempotency-Key honoured), POST /poses/{id}/complete
//   - GET  /trends?range=7|30
//   - POST /journal, GET /journal, GET /journal/streak
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/trend"
	"github.com/tbourn/go-wellness-backend/internal/utils"
	"github.com/tbourn/go-wellness-backend/internal/wellness"
)

//
// DTOs
//

// SleepRequest overwrites last night's sleep.
type SleepRequest struct {
	Hours *float64 `json:"hours" binding:"required" example:"7.5"`
}

// MoodRequest overwrites the self-reported mood (1..5).
type MoodRequest struct {
	Mood *int `json:"mood" binding:"required" example:"4"`
}

// ActivityRequest adds minutes of a wellness activity to today.
type ActivityRequest struct {
	Type    string `json:"type" binding:"required" example:"meditation" enums:"meditation,breathing,yoga"`
	Minutes int    `json:"minutes" example:"10"`
}

// SuggestionsResponse lists up to three content suggestions.
type SuggestionsResponse struct {
	Suggestions []catalog.Suggestion `json:"suggestions"`
}

// JournalListResponse lists entries newest first.
type JournalListResponse struct {
	Entries []domain.JournalEntry `json:"entries"`
}

// StreakResponse carries the journaling streak in days.
type StreakResponse struct {
	Streak int `json:"streak"`
}

//
// Profile
//

// Onboard godoc
// @ID          onboard
// @Summary     Create or replace the profile
// @Description Stores identity fields and stressors and seeds both indices from the questionnaire answers.
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    wellness.OnboardingInput  true  "Onboarding payload"
// @Success     201  {object}  domain.UserProfile
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile [post]
func (h *Handlers) Onboard(c *gin.Context) {
	var req wellness.OnboardingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.wellSvc.Onboard(c.Request.Context(), userID(c), req)
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get the profile
// @Tags        Profile
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  domain.UserProfile
// @Failure     404  {object}  handlers.ErrorResponse  "No profile yet"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.wellSvc.Profile(c.Request.Context(), userID(c))
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// Suggestions godoc
// @ID          suggestions
// @Summary     Content suggestions
// @Description Up to three suggestions chosen from the indices in force and the latest face-scan mood.
// @Tags        Profile
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.SuggestionsResponse
// @Router      /suggestions [get]
func (h *Handlers) Suggestions(c *gin.Context) {
	s, err := h.wellSvc.Suggestions(c.Request.Context(), userID(c))
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, SuggestionsResponse{Suggestions: s})
}

//
// Today
//

// GetToday godoc
// @ID          getToday
// @Summary     Today's record and indices
// @Description Creates today's record with defaults on first access of the day.
// @Tags        Today
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  wellness.Snapshot
// @Router      /today [get]
func (h *Handlers) GetToday(c *gin.Context) {
	snap, err := h.wellSvc.Today(c.Request.Context(), userID(c))
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// AddWater godoc
// @ID          addWater
// @Summary     Log one glass of water
// @Description Adds a glass; at 12 glasses it is a no-op that still succeeds.
// @Tags        Today
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  wellness.Snapshot
// @Router      /today/water [post]
func (h *Handlers) AddWater(c *gin.Context) {
	snap, err := h.wellSvc.AddWater(c.Request.Context(), userID(c))
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// SetSleep godoc
// @ID          setSleep
// @Summary     Set last night's sleep
// @Description Hours are clamped to [0,12].
// @Tags        Today
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.SleepRequest  true  "Sleep hours"
// @Success     200  {object}  wellness.Snapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /today/sleep [put]
func (h *Handlers) SetSleep(c *gin.Context) {
	var req SleepRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Hours == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "hours required")
		return
	}
	snap, err := h.wellSvc.SetSleepHours(c.Request.Context(), userID(c), *req.Hours)
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// SetMood godoc
// @ID          setMood
// @Summary     Set today's mood
// @Description Mood is clamped to [1,5].
// @Tags        Today
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.MoodRequest  true  "Mood"
// @Success     200  {object}  wellness.Snapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /today/mood [put]
func (h *Handlers) SetMood(c *gin.Context) {
	var req MoodRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Mood == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mood required")
		return
	}
	snap, err := h.wellSvc.SetMood(c.Request.Context(), userID(c), *req.Mood)
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// RecordActivity godoc
// @ID          recordActivity
// @Summary     Log activity minutes
// @Description Adds minutes to today's meditation, breathing or yoga accumulator and recomputes the indices.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Today
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.ActivityRequest  true  "Activity"
// @Success     200  {object}  wellness.Snapshot
// @Header      200  {string}  Idempotency-Replayed  "true when served from a stored result"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /activities [post]
func (h *Handlers) RecordActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type required")
		return
	}
	if h.replay(c) {
		return
	}
	kind := domain.Activity(strings.ToLower(strings.TrimSpace(req.Type)))
	snap, err := h.wellSvc.RecordActivity(c.Request.Context(), userID(c), kind, req.Minutes)
	if err != nil {
		failWellness(c, err)
		return
	}
	h.remember(c, http.StatusOK, snap)
}

// CompletePose godoc
// @ID          completePose
// @Summary     Complete a yoga pose
// @Description Records one yoga minute, recomputes the indices and adds the pose's health boost.
// @Tags        Today
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Pose ID"  example(tadasana)
// @Success     200  {object}  wellness.PoseResult
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown pose"
// @Router      /poses/{id}/complete [post]
func (h *Handlers) CompletePose(c *gin.Context) {
	res, err := h.wellSvc.CompletePose(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Trends godoc
// @ID          trends
// @Summary     Chart series and trends
// @Description One point per day (oldest first) with the direction of every tracked field.
// @Tags        Today
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       range      query   int     false "Days"  Enums(7, 30) default(7)
// @Success     200  {object}  trend.Summary
// @Failure     400  {object}  handlers.ErrorResponse  "Bad range"
// @Router      /trends [get]
func (h *Handlers) Trends(c *gin.Context) {
	days := utils.AtoiDefault(c.Query("range"), trend.Week)
	sum, err := h.wellSvc.Trends(c.Request.Context(), userID(c), days)
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}

//
// Journal
//

// SaveJournal godoc
// @ID          saveJournal
// @Summary     Write a journal entry
// @Description Creates or overwrites the entry for the given date (today when empty).
// @Tags        Journal
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    wellness.JournalInput  true  "Entry"
// @Success     201  {object}  domain.JournalEntry
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /journal [post]
func (h *Handlers) SaveJournal(c *gin.Context) {
	var req wellness.JournalInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	e, err := h.wellSvc.SaveJournal(c.Request.Context(), userID(c), req)
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusCreated, e)
}

// ListJournal godoc
// @ID          listJournal
// @Summary     List journal entries
// @Tags        Journal
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.JournalListResponse
// @Router      /journal [get]
func (h *Handlers) ListJournal(c *gin.Context) {
	es, err := h.wellSvc.Journal(c.Request.Context(), userID(c))
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, JournalListResponse{Entries: es})
}

// JournalStreak godoc
// @ID          journalStreak
// @Summary     Journaling streak
// @Description Consecutive days with an entry, ending today.
// @Tags        Journal
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.StreakResponse
// @Router      /journal/streak [get]
func (h *Handlers) JournalStreak(c *gin.Context) {
	n, err := h.wellSvc.JournalStreak(c.Request.Context(), userID(c))
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, StreakResponse{Streak: n})
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
	"github.com/tbourn/go-wellness-backend/internal/search"
	"github.com/tbourn/go-wellness-backend/internal/services"
	"github.com/tbourn/go-wellness-backend/internal/utils"
)

// SearchResponse lists ranked content.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// PosesResponse lists the yoga poses in display order.
type PosesResponse struct {
	Poses []catalog.Pose `json:"poses"`
}

// SearchContent godoc
// @ID          searchContent
// @Summary     Search guided content
// @Description Ranks poses, meditations, breathing exercises, books, quotes and facts by
// @Description token overlap with q. Natural-language questions are retried as keywords.
// @Tags        Content
// @Produce     json
// @Param       q      query  string  true   "Search text"  example(help me sleep)
// @Param       kind   query  string  false  "Restrict to one kind"  Enums(pose, meditation, breathing, book, quote, fact)
// @Param       limit  query  int     false  "Max results"  minimum(1) maximum(20) default(5)
// @Success     200  {object}  handlers.SearchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty query"
// @Router      /content/search [get]
func (h *Handlers) SearchContent(c *gin.Context) {
	q := c.Query("q")
	limit := utils.AtoiDefault(c.Query("limit"), 5)
	res, err := h.contentSvc.Search(c.Request.Context(), q, strings.ToLower(strings.TrimSpace(c.Query("kind"))), limit)
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuery) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, SearchResponse{Query: strings.TrimSpace(q), Results: res})
}

// ListPoses godoc
// @ID          listPoses
// @Summary     Yoga poses
// @Tags        Content
// @Produce     json
// @Success     200  {object}  handlers.PosesResponse
// @Router      /content/poses [get]
func (h *Handlers) ListPoses(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	ok(c, http.StatusOK, PosesResponse{Poses: catalog.Poses()})
}

// Face-scan HTTP handlers.
//
//   - POST /face-scans          (multipart burst of frames → classify → store)
//   - GET  /face-scans/latest   (most recent scan)
//   - GET  /face-scans          (history, newest first)
//
// The client captures the burst; the server picks the sharpest frame, runs
// the classifier ensemble and records the averaged result.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/facescan"
	"github.com/tbourn/go-wellness-backend/internal/store"
	"github.com/tbourn/go-wellness-backend/internal/utils"
)

// FramesField is the multipart field carrying the frames.
const FramesField = "frames"

// maxFrames bounds one upload.
const maxFrames = 10

// FaceHistoryResponse lists stored scans, newest first.
type FaceHistoryResponse struct {
	Scans []domain.FaceSignal `json:"scans"`
}

func readFrames(files []*multipart.FileHeader) ([][]byte, error) {
	raw := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return raw, nil
}

// CreateFaceScan godoc
// @ID          createFaceScan
// @Summary     Analyse a face-scan burst
// @Description Accepts up to 10 JPEG/PNG frames, keeps the sharpest, classifies it several times,
// @Description averages the passes and stores the result (applying its delta to the indices).
// @Tags        FaceScans
// @Accept      multipart/form-data
// @Produce     json
// @Param       X-User-ID  header    string  false "User ID (demo header)"  example(user123)
// @Param       frames     formData  file    true  "Camera frames (repeat the field)"
// @Success     201  {object}  wellness.FaceScanResult
// @Failure     400  {object}  handlers.ErrorResponse  "No or undecodable frames"
// @Failure     413  {object}  handlers.ErrorResponse  "Upload too large"
// @Failure     429  {object}  handlers.ErrorResponse  "Classifier rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "Analysis failed"
// @Failure     503  {object}  handlers.ErrorResponse  "Classifier unavailable"
// @Router      /face-scans [post]
func (h *Handlers) CreateFaceScan(c *gin.Context) {
	ctx := c.Request.Context()

	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart form with frames required")
		return
	}
	files := form.File[FramesField]
	if len(files) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "at least one frame required")
		return
	}
	if len(files) > maxFrames {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("at most %d frames", maxFrames))
		return
	}
	raw, err := readFrames(files)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable frame")
		return
	}
	cam, err := facescan.DecodeFrames(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "frames must be JPEG or PNG images")
		return
	}
	if h.classifier == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, facescan.MsgUnavailable)
		return
	}

	// the burst is already captured: sample every frame without pacing
	cfg := h.scanCfg
	cfg.Frames = len(cam.Frames)
	s := facescan.NewSampler(cam, h.classifier, cfg)
	s.Wait = facescan.NoWait
	if err := s.Open(ctx); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, facescan.UserMessage(err))
		return
	}
	defer s.Close()

	res, err := s.Capture(ctx)
	if err != nil {
		msg := facescan.UserMessage(err)
		switch {
		case ctx.Err() != nil:
			c.Abort()
		case errors.Is(err, facescan.ErrRateLimited):
			fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, msg)
		case errors.Is(err, facescan.ErrServiceUnavailable):
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, msg)
		default:
			fail(c, http.StatusBadGateway, ErrCodeScanFailed, msg)
		}
		return
	}

	out, err := h.wellSvc.RecordFaceScan(ctx, userID(c), res.Signal())
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusCreated, out)
}

// LatestFaceScan godoc
// @ID          latestFaceScan
// @Summary     Latest face scan
// @Tags        FaceScans
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  domain.FaceSignal
// @Failure     404  {object}  handlers.ErrorResponse  "No scan yet"
// @Router      /face-scans/latest [get]
func (h *Handlers) LatestFaceScan(c *gin.Context) {
	f, found, err := h.wellSvc.LatestFace(c.Request.Context(), userID(c))
	if err != nil {
		failWellness(c, err)
		return
	}
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no face scan yet")
		return
	}
	ok(c, http.StatusOK, f)
}

// ListFaceScans godoc
// @ID          listFaceScans
// @Summary     Face-scan history
// @Tags        FaceScans
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       limit      query   int     false "Max scans"  minimum(1) maximum(30) default(30)
// @Success     200  {object}  handlers.FaceHistoryResponse
// @Router      /face-scans [get]
func (h *Handlers) ListFaceScans(c *gin.Context) {
	n := utils.Clamp(utils.AtoiDefault(c.Query("limit"), store.FaceHistoryLimit), 1, store.FaceHistoryLimit)
	scans, err := h.wellSvc.FaceHistory(c.Request.Context(), userID(c), n)
	if err != nil {
		failWellness(c, err)
		return
	}
	ok(c, http.StatusOK, FaceHistoryResponse{Scans: scans})
}

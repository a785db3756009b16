package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/facescan"
	"github.com/tbourn/go-wellness-backend/internal/wellness"
)

// pngFrame renders a small checkerboard; step controls its sharpness.
func pngFrame(t *testing.T, step int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			if (x/step+y/step)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 220})
			} else {
				img.SetGray(x, y, color.Gray{Y: 30})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func (e *testEnv) postFrames(t *testing.T, frames ...[]byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, f := range frames {
		part, err := mw.CreateFormFile(FramesField, "frame"+string(rune('a'+i))+".png")
		if err != nil {
			t.Fatalf("multipart: %v", err)
		}
		part.Write(f)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/face-scans", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func countingClassifier(calls *atomic.Int32, res facescan.Result, err error) facescan.Classifier {
	return facescan.ClassifierFunc(func(ctx context.Context, req facescan.Request) (facescan.Result, error) {
		calls.Add(1)
		if req.ImageBase64 == "" {
			panic("empty image")
		}
		return res, err
	})
}

func TestCreateFaceScan_StoresAveragedResult(t *testing.T) {
	var calls atomic.Int32
	cls := countingClassifier(&calls, facescan.Result{
		Mood: domain.MoodHappy, Confidence: 82, Description: "Relaxed smile", WellnessTip: "Keep it up",
	}, nil)
	e := newEnv(t, nil, cls)

	w := e.postFrames(t, pngFrame(t, 8), pngFrame(t, 2), pngFrame(t, 16))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	res := decode[wellness.FaceScanResult](t, w)
	if res.Scan.Mood != domain.MoodHappy || res.Scan.Confidence != 82 || res.Scan.Date == "" {
		t.Fatalf("scan=%+v", res.Scan)
	}
	if res.Scan.HealthFlags == nil {
		t.Fatalf("health flags should be an empty list, not null")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("classifier passes=%d want 3", n)
	}

	latest := decode[domain.FaceSignal](t, e.do(http.MethodGet, "/face-scans/latest", ""))
	if latest.Mood != domain.MoodHappy {
		t.Fatalf("latest=%+v", latest)
	}
	hist := decode[FaceHistoryResponse](t, e.do(http.MethodGet, "/face-scans?limit=0", ""))
	if len(hist.Scans) != 1 {
		t.Fatalf("history=%+v", hist.Scans)
	}
}

func TestCreateFaceScan_BadUploads(t *testing.T) {
	var calls atomic.Int32
	e := newEnv(t, nil, countingClassifier(&calls, facescan.Result{Mood: domain.MoodNeutral}, nil))

	wantError(t, e.postFrames(t), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.postFrames(t, []byte("definitely not an image")), http.StatusBadRequest, ErrCodeBadRequest)

	many := make([][]byte, maxFrames+1)
	for i := range many {
		many[i] = pngFrame(t, 4)
	}
	wantError(t, e.postFrames(t, many...), http.StatusBadRequest, ErrCodeBadRequest)

	// plain JSON is not a multipart form
	wantError(t, e.do(http.MethodPost, "/face-scans", `{"frames":[]}`), http.StatusBadRequest, ErrCodeBadRequest)

	if calls.Load() != 0 {
		t.Fatalf("classifier must not run for rejected uploads")
	}
}

func TestCreateFaceScan_ClassifierErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"rate limited", facescan.ErrRateLimited, http.StatusTooManyRequests, ErrCodeRateLimited, facescan.MsgRateLimited},
		{"unavailable", facescan.ErrServiceUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable, facescan.MsgUnavailable},
		{"failed", facescan.ErrClassifierFailed, http.StatusBadGateway, ErrCodeScanFailed, facescan.MsgAnalysisFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			e := newEnv(t, nil, countingClassifier(&calls, facescan.Result{}, tc.err))
			w := e.postFrames(t, pngFrame(t, 4))
			wantError(t, w, tc.status, tc.code)
			if got := decode[ErrorResponse](t, w).Message; got != tc.msg {
				t.Fatalf("message=%q want %q", got, tc.msg)
			}
			wantError(t, e.do(http.MethodGet, "/face-scans/latest", ""), http.StatusNotFound, ErrCodeNotFound)
		})
	}
}

func TestCreateFaceScan_NoClassifier(t *testing.T) {
	e := newEnv(t, nil, nil)
	wantError(t, e.postFrames(t, pngFrame(t, 4)), http.StatusServiceUnavailable, ErrCodeUnavailable)
}

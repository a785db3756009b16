package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
)

func TestSearchContent(t *testing.T) {
	e := newEnv(t, nil, nil)

	wantError(t, e.do(http.MethodGet, "/content/search?q=%20%20", ""), http.StatusBadRequest, ErrCodeBadRequest)

	w := e.do(http.MethodGet, "/content/search?q=surya+namaskar+yoga&limit=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) == 0 || len(resp.Results) > 3 {
		t.Fatalf("results=%+v", resp.Results)
	}
	if resp.Results[0].ID != "surya-namaskar" {
		t.Fatalf("top result=%+v", resp.Results[0])
	}

	resp = decode[SearchResponse](t, e.do(http.MethodGet, "/content/search?q=breathing&kind=BREATHING", ""))
	if len(resp.Results) == 0 {
		t.Fatalf("no breathing results")
	}
	for _, r := range resp.Results {
		if r.Kind != "breathing" {
			t.Fatalf("kind filter leaked %+v", r)
		}
	}
}

func TestListPoses(t *testing.T) {
	e := newEnv(t, nil, nil)
	w := e.do(http.MethodGet, "/content/poses", "")
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") == "" {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}
	resp := decode[PosesResponse](t, w)
	if len(resp.Poses) != len(catalog.Poses()) {
		t.Fatalf("poses=%d", len(resp.Poses))
	}
	for _, p := range resp.Poses {
		if p.HoldSeconds != 30 {
			t.Fatalf("hold=%d for %s", p.HoldSeconds, p.ID)
		}
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndUnmatchedLabel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/today", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.PUT("/sessions/:id/title", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/today", "200"))
	base204 := testutil.ToFloat64(httpReqs.WithLabelValues("PUT", "/sessions/:id/title", "204"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))

	for _, rq := range []struct{ method, path string }{
		{http.MethodGet, "/today"},
		{http.MethodPut, "/sessions/abc/title"},
		{http.MethodGet, "/random/123"},
		{http.MethodGet, "/random/456"},
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(rq.method, rq.path, nil))
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/today", "200")); got != baseOK+1 {
		t.Fatalf("counter /today 200 = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("PUT", "/sessions/:id/title", "204")); got != base204+1 {
		t.Fatalf("route pattern label = %v; want %v", got, base204+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != base404+2 {
		t.Fatalf("unmatched 404s = %v; want %v", got, base404+2)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

// seriesFor reports whether c has a series labelled path=route.
func seriesFor(t *testing.T, c prometheus.Collector, route string) bool {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" && l.GetValue() == route {
					return true
				}
			}
		}
	}
	return false
}

func TestMetrics_StreamsUseOwnHistogram(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	const route = "/metrics-test/:id/stream"
	r.POST(route, func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.String(http.StatusOK, "event:done\ndata:{}\n\n")
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/metrics-test/x/stream", nil))

	if !seriesFor(t, httpStreamDur, route) {
		t.Fatalf("stream histogram not observed")
	}
	if seriesFor(t, httpLat, route) {
		t.Fatalf("stream leaked into request latency")
	}
}

func TestTrackStream(t *testing.T) {
	base := testutil.ToFloat64(httpStreams)
	done := TrackStream()
	if got := testutil.ToFloat64(httpStreams); got != base+1 {
		t.Fatalf("open streams = %v; want %v", got, base+1)
	}
	done()
	if got := testutil.ToFloat64(httpStreams); got != base {
		t.Fatalf("open streams after done = %v; want %v", got, base)
	}
}

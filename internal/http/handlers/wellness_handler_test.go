package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/trend"
	"github.com/tbourn/go-wellness-backend/internal/wellness"
)

func TestProfile_OnboardAndFetch(t *testing.T) {
	e := newEnv(t, nil, nil)

	wantError(t, e.do(http.MethodGet, "/profile", ""), http.StatusNotFound, ErrCodeProfileRequired)
	wantError(t, e.do(http.MethodPost, "/profile", `{"name":"  "}`), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/profile", `not json`), http.StatusBadRequest, ErrCodeBadRequest)

	w := e.do(http.MethodPost, "/profile", `{"name":" Asha ","age":29,"stressors":["Work","work"],"answers":{"sleep_quality":[4],"stress_level":[2]}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	p := decode[domain.UserProfile](t, w)
	if p.Name != "Asha" || p.Age != 29 {
		t.Fatalf("profile=%+v", p)
	}

	got := decode[domain.UserProfile](t, e.do(http.MethodGet, "/profile", ""))
	if got.Name != "Asha" || got.Indices != p.Indices {
		t.Fatalf("fetched=%+v want %+v", got, p)
	}

	sug := decode[SuggestionsResponse](t, e.do(http.MethodGet, "/suggestions", ""))
	if len(sug.Suggestions) == 0 || len(sug.Suggestions) > 3 {
		t.Fatalf("suggestions=%+v", sug.Suggestions)
	}
}

func TestToday_SignalsUpdateSnapshot(t *testing.T) {
	e := newEnv(t, nil, nil)

	snap := decode[wellness.Snapshot](t, e.do(http.MethodGet, "/today", ""))
	if snap.Today.Mood != domain.DefaultMood || snap.Today.SleepHours != domain.DefaultSleepHours || snap.HasProfile {
		t.Fatalf("defaults=%+v", snap)
	}

	for range 3 {
		snap = decode[wellness.Snapshot](t, e.do(http.MethodPost, "/today/water", ""))
	}
	if snap.Today.WaterIntake != 3 {
		t.Fatalf("water=%d", snap.Today.WaterIntake)
	}

	snap = decode[wellness.Snapshot](t, e.do(http.MethodPut, "/today/sleep", `{"hours":15}`))
	if snap.Today.SleepHours != 12 {
		t.Fatalf("sleep should clamp to 12, got %v", snap.Today.SleepHours)
	}
	snap = decode[wellness.Snapshot](t, e.do(http.MethodPut, "/today/mood", `{"mood":0}`))
	if snap.Today.Mood != 1 {
		t.Fatalf("mood should clamp to 1, got %d", snap.Today.Mood)
	}

	wantError(t, e.do(http.MethodPut, "/today/sleep", `{}`), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPut, "/today/mood", `{"mood":"x"}`), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestRecordActivity(t *testing.T) {
	e := newEnv(t, nil, nil)

	snap := decode[wellness.Snapshot](t, e.do(http.MethodPost, "/activities", `{"type":" Meditation ","minutes":10}`))
	if snap.Today.MeditationMinutes != 10 {
		t.Fatalf("meditation=%d", snap.Today.MeditationMinutes)
	}

	wantError(t, e.do(http.MethodPost, "/activities", `{"type":"running","minutes":10}`), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/activities", `{"type":"yoga","minutes":-1}`), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/activities", `{}`), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestRecordActivity_IdempotentReplay(t *testing.T) {
	e := newEnv(t, nil, nil)

	first := e.do(http.MethodPost, "/activities", `{"type":"breathing","minutes":5}`, "Idempotency-Key", "act-1")
	second := e.do(http.MethodPost, "/activities", `{"type":"breathing","minutes":5}`, "Idempotency-Key", "act-1")
	if second.Header().Get("Idempotency-Replayed") != "true" || first.Body.String() != second.Body.String() {
		t.Fatalf("expected replay of the first result")
	}

	// another user with the same key is not affected
	if w := e.do(http.MethodPost, "/activities", `{"type":"breathing","minutes":5}`, "Idempotency-Key", "act-1", "X-User-ID", "u2"); w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("key must be scoped to the user")
	}

	snap := decode[wellness.Snapshot](t, e.do(http.MethodGet, "/today", ""))
	if snap.Today.BreathingMinutes != 5 {
		t.Fatalf("replay must not add minutes twice: %d", snap.Today.BreathingMinutes)
	}
}

func TestCompletePose(t *testing.T) {
	e := newEnv(t, nil, nil)

	wantError(t, e.do(http.MethodPost, "/poses/headstand-9000/complete", ""), http.StatusNotFound, ErrCodeNotFound)

	w := e.do(http.MethodPost, "/poses/surya-namaskar/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	res := decode[wellness.PoseResult](t, w)
	if res.Pose.ID != "surya-namaskar" || res.Today.YogaMinutes != 1 {
		t.Fatalf("result=%+v", res)
	}
}

func TestTrends(t *testing.T) {
	e := newEnv(t, nil, nil)

	sum := decode[trend.Summary](t, e.do(http.MethodGet, "/trends", ""))
	if sum.Range != trend.Week || len(sum.Points) != trend.Week {
		t.Fatalf("week summary=%+v", sum)
	}
	sum = decode[trend.Summary](t, e.do(http.MethodGet, "/trends?range=30", ""))
	if len(sum.Points) != trend.Month {
		t.Fatalf("month points=%d", len(sum.Points))
	}
	wantError(t, e.do(http.MethodGet, "/trends?range=14", ""), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestJournal(t *testing.T) {
	e := newEnv(t, nil, nil)

	wantError(t, e.do(http.MethodPost, "/journal", `{"reflection":"   "}`), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/journal", `{"date":"15/10/2026","reflection":"x"}`), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/journal", `{"date":"2999-01-01","reflection":"x"}`), http.StatusBadRequest, ErrCodeBadRequest)

	w := e.do(http.MethodPost, "/journal", `{"mood":4,"reflection":"A calm walk","gratitude":"sunlight"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	entry := decode[domain.JournalEntry](t, w)
	if entry.Date != e.well.TodayDate() || entry.Reflection != "A calm walk" {
		t.Fatalf("entry=%+v", entry)
	}

	list := decode[JournalListResponse](t, e.do(http.MethodGet, "/journal", ""))
	if len(list.Entries) != 1 {
		t.Fatalf("entries=%+v", list.Entries)
	}
	if s := decode[StreakResponse](t, e.do(http.MethodGet, "/journal/streak", "")); s.Streak != 1 {
		t.Fatalf("streak=%d", s.Streak)
	}
}

type brokenWellness struct{ WellnessService }

func (brokenWellness) Today(context.Context, string) (wellness.Snapshot, error) {
	return wellness.Snapshot{}, errors.New("disk on fire")
}

func TestFailWellness_UnknownErrorIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(Deps{Wellness: brokenWellness{}})
	r := gin.New()
	r.GET("/today", h.GetToday)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/today", nil))
	wantError(t, w, http.StatusInternalServerError, ErrCodeInternal)
}

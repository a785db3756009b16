package wellness

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/trend"
)

// Windows of history handed to the companion.
const (
	ContextHistoryDays = 7
	ContextFaceScans   = 7
	ContextJournal     = 5
)

// ChatContext is the state the companion sees with every message.
type ChatContext struct {
	Name        string                `json:"name,omitempty"`
	Age         int                   `json:"age,omitempty"`
	Gender      string                `json:"gender,omitempty"`
	Occupation  string                `json:"occupation,omitempty"`
	Country     string                `json:"country,omitempty"`
	Stressors   []string              `json:"stressors,omitempty"`
	Indices     domain.Indices        `json:"indices"`
	Today       domain.DailySignal    `json:"today"`
	History     []domain.DailySignal  `json:"history"`
	LatestFace  *domain.FaceSignal    `json:"latest_face_scan,omitempty"`
	FaceHistory []domain.FaceSignal   `json:"face_history"`
	Journal     []domain.JournalEntry `json:"recent_journal"`
}

// ChatContext assembles the companion context: profile fields, indices,
// today's record, the stored days of the previous week (oldest first), the
// latest face scan plus the last 7 scans, and the 5 most recent journal
// entries.
func (s *Service) ChatContext(ctx context.Context, userID string) (ChatContext, error) {
	ctx, sp := span(ctx, "ChatContext", userID)
	defer sp.End()

	snap, prof, err := s.current(ctx, userID)
	if err != nil {
		return ChatContext{}, err
	}
	g := s.gateway(userID)
	today := snap.Today.Date
	out := ChatContext{Today: snap.Today, Indices: snap.Indices, History: []domain.DailySignal{}}
	if snap.HasProfile {
		out.Name, out.Age, out.Gender = prof.Name, prof.Age, prof.Gender
		out.Occupation, out.Country, out.Stressors = prof.Occupation, prof.Country, prof.Stressors
	}

	for i := ContextHistoryDays; i >= 1; i-- {
		date, err := domain.AddDays(today, -i)
		if err != nil {
			return ChatContext{}, err
		}
		day, ok, err := g.Daily(ctx, date)
		if err != nil {
			return ChatContext{}, err
		}
		if ok {
			out.History = append(out.History, day)
		}
	}

	if f, ok, err := g.LatestFace(ctx); err != nil {
		return ChatContext{}, err
	} else if ok {
		out.LatestFace = &f
	}
	h, err := g.FaceHistory(ctx)
	if err != nil {
		return ChatContext{}, err
	}
	out.FaceHistory = lastN(h, ContextFaceScans, false)

	m, err := g.Journal(ctx)
	if err != nil {
		return ChatContext{}, err
	}
	out.Journal = recent(m, ContextJournal)
	sp.SetAttributes(attribute.Int("history_days", len(out.History)), attribute.Int("face_scans", len(out.FaceHistory)))
	return out, nil
}

// Suggestions picks up to three content suggestions from the indices in
// force and the latest face-scan mood.
func (s *Service) Suggestions(ctx context.Context, userID string) ([]catalog.Suggestion, error) {
	ctx, sp := span(ctx, "Suggestions", userID)
	defer sp.End()

	snap, _, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	var mood domain.Mood
	if f, ok, err := s.gateway(userID).LatestFace(ctx); err != nil {
		return nil, err
	} else if ok {
		mood = f.Mood
	}
	return catalog.Suggest(snap.Indices, mood), nil
}

// Trends returns the chart series for the last rangeDays days with the
// trend of every field.
func (s *Service) Trends(ctx context.Context, userID string, rangeDays int) (trend.Summary, error) {
	ctx, sp := span(ctx, "Trends", userID, attribute.Int("range", rangeDays))
	defer sp.End()

	if rangeDays != trend.Week && rangeDays != trend.Month {
		return trend.Summary{}, trend.ErrInvalidRange
	}
	snap, _, err := s.current(ctx, userID)
	if err != nil {
		return trend.Summary{}, err
	}
	pts, err := trend.BuildSeries(ctx, s.gateway(userID), snap.Today.Date, rangeDays)
	if err != nil {
		return trend.Summary{}, err
	}
	return trend.Summarize(pts), nil
}

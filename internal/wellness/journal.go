package wellness

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/index"
	"github.com/tbourn/go-wellness-backend/internal/store"
)

// MaxReflectionRunes bounds reflection and gratitude text.
const MaxReflectionRunes = 4000

// JournalInput is one submitted entry. An empty Date means today; a zero
// Mood means the default mood.
type JournalInput struct {
	Date       string `json:"date"`
	Mood       int    `json:"mood"`
	Reflection string `json:"reflection"`
	Gratitude  string `json:"gratitude"`
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

// SaveJournal creates or overwrites the entry for in.Date. Journal mood is
// kept with the entry only; it does not move the indices.
func (s *Service) SaveJournal(ctx context.Context, userID string, in JournalInput) (domain.JournalEntry, error) {
	ctx, sp := span(ctx, "SaveJournal", userID)
	defer sp.End()

	today := s.TodayDate()
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = today
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.JournalEntry{}, ErrInvalidDate
	}
	if date > today {
		return domain.JournalEntry{}, ErrFutureDate
	}
	reflection := strings.TrimSpace(in.Reflection)
	if reflection == "" {
		return domain.JournalEntry{}, ErrEmptyReflection
	}
	mood := in.Mood
	if mood == 0 {
		mood = domain.DefaultMood
	}
	e := domain.JournalEntry{
		Date:       date,
		Mood:       index.Clamp(mood, domain.MinMood, domain.MaxMood),
		Reflection: clip(reflection, MaxReflectionRunes),
		Gratitude:  clip(strings.TrimSpace(in.Gratitude), MaxReflectionRunes),
		Timestamp:  s.now().UTC(),
	}

	defer s.lock(userID)()
	err := s.gateway(userID).Tx(ctx, func(g *store.Gateway) error {
		m, err := g.Journal(ctx)
		if err != nil {
			return err
		}
		m[date] = e
		return g.PutJournal(ctx, m)
	})
	if err != nil {
		sp.RecordError(err)
		return domain.JournalEntry{}, err
	}
	return e, nil
}

// Journal returns every entry, newest date first.
func (s *Service) Journal(ctx context.Context, userID string) ([]domain.JournalEntry, error) {
	ctx, sp := span(ctx, "Journal", userID)
	defer sp.End()

	m, err := s.gateway(userID).Journal(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.JournalEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// JournalStreak counts consecutive days with an entry, walking back from
// today. No entry today means a streak of zero.
func (s *Service) JournalStreak(ctx context.Context, userID string) (int, error) {
	ctx, sp := span(ctx, "JournalStreak", userID)
	defer sp.End()

	m, err := s.gateway(userID).Journal(ctx)
	if err != nil {
		return 0, err
	}
	return Streak(m, s.TodayDate()), nil
}

// Streak is the trailing run of dated entries ending at today.
func Streak(entries map[string]domain.JournalEntry, today string) int {
	n := 0
	for date := today; ; n++ {
		if _, ok := entries[date]; !ok {
			return n
		}
		prev, err := domain.AddDays(date, -1)
		if err != nil {
			return n
		}
		date = prev
	}
}

// RecentJournal returns up to n entries ordered by save time, newest first.
func (s *Service) RecentJournal(ctx context.Context, userID string, n int) ([]domain.JournalEntry, error) {
	m, err := s.gateway(userID).Journal(ctx)
	if err != nil {
		return nil, err
	}
	return recent(m, n), nil
}

func recent(m map[string]domain.JournalEntry, n int) []domain.JournalEntry {
	out := make([]domain.JournalEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Date > out[j].Date
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

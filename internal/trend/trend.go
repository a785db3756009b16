// Package trend builds the multi-day series behind the wellness chart and
// derives trend direction from it.
package trend

import (
	"context"
	"errors"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/index"
)

// ErrInvalidRange is returned for a range other than 7 or 30 days.
var ErrInvalidRange = errors.New("range must be 7 or 30 days")

// ErrInvalidKey is returned by CalculateTrend for an unknown series field.
var ErrInvalidKey = errors.New("unknown trend key")

// Supported ranges.
const (
	Week  = 7
	Month = 30
)

// Values shown for a day with no stored record.
const (
	DefaultHappiness = 50
	DefaultHealth    = 50
)

// Point is one day on the chart. Estimated is false only for the point
// taken from the live profile.
type Point struct {
	Date       string `json:"date"`
	Happiness  int    `json:"happiness"`
	Health     int    `json:"health"`
	Meditation int    `json:"meditation"`
	Yoga       int    `json:"yoga"`
	Breathing  int    `json:"breathing"`
	Estimated  bool   `json:"estimated"`
}

// Reader is the read side of the signal store used by BuildSeries.
type Reader interface {
	Daily(ctx context.Context, date string) (domain.DailySignal, bool, error)
	Profile(ctx context.Context) (domain.UserProfile, bool, error)
}

// BuildSeries returns exactly rangeDays points, oldest first, ending at
// today. Stored days are estimated with index.Estimate; the final point
// takes the persisted profile indices when a profile exists.
func BuildSeries(ctx context.Context, r Reader, today string, rangeDays int) ([]Point, error) {
	if rangeDays != Week && rangeDays != Month {
		return nil, ErrInvalidRange
	}
	out := make([]Point, 0, rangeDays)
	for i := rangeDays - 1; i >= 0; i-- {
		date, err := domain.AddDays(today, -i)
		if err != nil {
			return nil, err
		}
		p := Point{Date: date, Happiness: DefaultHappiness, Health: DefaultHealth, Estimated: true}
		d, ok, err := r.Daily(ctx, date)
		if err != nil {
			return nil, err
		}
		if ok {
			ix := index.Estimate(d)
			p.Happiness, p.Health = ix.Happiness, ix.Health
			p.Meditation, p.Yoga, p.Breathing = d.MeditationMinutes, d.YogaMinutes, d.BreathingMinutes
		}
		out = append(out, p)
	}

	prof, ok, err := r.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		last := &out[len(out)-1]
		last.Happiness, last.Health = prof.Happiness, prof.Health
		last.Estimated = false
	}
	return out, nil
}

// Keys accepted by CalculateTrend.
const (
	KeyHappiness  = "happiness"
	KeyHealth     = "health"
	KeyMeditation = "meditation"
	KeyYoga       = "yoga"
	KeyBreathing  = "breathing"
)

func value(p Point, key string) (int, bool) {
	switch key {
	case KeyHappiness:
		return p.Happiness, true
	case KeyHealth:
		return p.Health, true
	case KeyMeditation:
		return p.Meditation, true
	case KeyYoga:
		return p.Yoga, true
	case KeyBreathing:
		return p.Breathing, true
	}
	return 0, false
}

// CalculateTrend is mean(last up-to-3) minus mean(first up-to-3), rounded
// half up. Fewer than two points yield 0.
func CalculateTrend(series []Point, key string) (int, error) {
	if _, ok := value(Point{}, key); !ok {
		return 0, ErrInvalidKey
	}
	if len(series) < 2 {
		return 0, nil
	}
	n := min(3, len(series))
	var first, last float64
	for i := 0; i < n; i++ {
		a, _ := value(series[i], key)
		b, _ := value(series[len(series)-n+i], key)
		first += float64(a)
		last += float64(b)
	}
	return index.Round(last/float64(n) - first/float64(n)), nil
}

// Summary carries a series with the direction of every tracked field.
type Summary struct {
	Range  int            `json:"range"`
	Points []Point        `json:"points"`
	Trends map[string]int `json:"trends"`
}

// Summarize computes CalculateTrend for every key.
func Summarize(series []Point) Summary {
	s := Summary{Range: len(series), Points: series, Trends: make(map[string]int, 5)}
	for _, k := range []string{KeyHappiness, KeyHealth, KeyMeditation, KeyYoga, KeyBreathing} {
		s.Trends[k], _ = CalculateTrend(series, k)
	}
	return s
}

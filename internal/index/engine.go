// Package index computes the Happiness and Health indices from daily
// signals. Every function here is pure and returns values clamped to their
// documented range.
package index

import (
	"math"

	"github.com/tbourn/go-wellness-backend/internal/domain"
)

// Bounds of the formula path and of the face-scan delta path.
const (
	Min         = 0
	Max         = 100
	FaceScanMin = 5
)

// Round rounds halves up (2.5 → 3, -2.5 → -2).
func Round(x float64) int { return int(math.Floor(x + 0.5)) }

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// Components are the weighted sub-scores behind Compute.
type Components struct {
	Water    float64 `json:"water"`    // 0..20
	Sleep    float64 `json:"sleep"`    // 0..25
	Mood     float64 `json:"mood"`     // 0..25
	Activity float64 `json:"activity"` // 0..30
}

// Score breaks d down into its weighted components:
//
//	water    = min(glasses/8, 1) * 20
//	sleep    = 25 when hours >= 7, else hours/7 * 25
//	mood     = mood/5 * 25
//	activity = min(minutes/30, 1) * 30
//
// The products are rearranged so whole inputs give exact results.
func Score(d domain.DailySignal) Components {
	d = d.Normalized()
	c := Components{
		Water:    math.Min(float64(d.WaterIntake), 8) * 20 / 8,
		Mood:     float64(d.Mood) * 5,
		Activity: math.Min(float64(d.ActivityMinutes()), 30),
		Sleep:    25,
	}
	if d.SleepHours < 7 {
		c.Sleep = d.SleepHours * 25 / 7
	}
	return c
}

// Compute is the authoritative index formula for a day's signals.
//
//	health    = water + sleep + activity
//	happiness = mood + activity + water/2 + sleep/2
func Compute(d domain.DailySignal) domain.Indices {
	c := Score(d)
	return domain.Indices{
		Health:    Round(clampf(c.Water+c.Sleep+c.Activity, Min, Max)),
		Happiness: Round(clampf(c.Mood+c.Activity+c.Water/2+c.Sleep/2, Min, Max)),
	}
}

// ApplyBoost adds a pose completion boost to health. It must run after
// Compute for the same change.
func ApplyBoost(in domain.Indices, boost int) domain.Indices {
	in.Health = Clamp(in.Health+boost, Min, Max)
	in.Happiness = Clamp(in.Happiness, Min, Max)
	return in
}

// MoodImpact is the happiness delta applied for a face-scan mood.
var MoodImpact = map[domain.Mood]int{
	domain.MoodHappy:    5,
	domain.MoodNeutral:  0,
	domain.MoodSad:      -5,
	domain.MoodAngry:    -4,
	domain.MoodAnxious:  -6,
	domain.MoodTired:    -3,
	domain.MoodStressed: -5,
}

// Health deltas for a face scan with and without health flags.
const (
	FaceFlaggedHealthDelta = -3
	FaceClearHealthDelta   = 2
)

// ApplyFaceScan applies the face-scan deltas. Results are floored at
// FaceScanMin rather than zero.
func ApplyFaceScan(in domain.Indices, mood domain.Mood, hasHealthFlags bool) domain.Indices {
	hd := FaceClearHealthDelta
	if hasHealthFlags {
		hd = FaceFlaggedHealthDelta
	}
	return domain.Indices{
		Happiness: Clamp(in.Happiness+MoodImpact[mood], FaceScanMin, Max),
		Health:    Clamp(in.Health+hd, FaceScanMin, Max),
	}
}

// Estimate approximates the indices of a past day for charting. It is not
// interchangeable with Compute and is never persisted.
func Estimate(d domain.DailySignal) domain.Indices {
	d = d.Normalized()
	activity := math.Min(float64(d.ActivityMinutes())*2, 40)
	water := math.Min(float64(d.WaterIntake)*3, 24)
	sleep := math.Min(d.SleepHours*3, 24)
	mood := float64(d.Mood) * 6

	return domain.Indices{
		Health:    Round(clampf(math.Min(50+activity+water+sleep-30, 100), Min, Max)),
		Happiness: Round(clampf(math.Min(50+mood+activity-20, 100), Min, Max)),
	}
}

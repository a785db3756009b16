package domain

import (
	"math"
	"time"
)

// DateLayout is the ISO calendar date format used for record keys.
const DateLayout = "2006-01-02"

// Activity is a kind of guided session whose minutes accumulate per day.
type Activity string

const (
	ActivityMeditation Activity = "meditation"
	ActivityBreathing  Activity = "breathing"
	ActivityYoga       Activity = "yoga"
)

// Valid reports whether a is one of the tracked activity kinds.
func (a Activity) Valid() bool {
	switch a {
	case ActivityMeditation, ActivityBreathing, ActivityYoga:
		return true
	}
	return false
}

// Mood is a label reported by the face classifier.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodSad      Mood = "sad"
	MoodAngry    Mood = "angry"
	MoodAnxious  Mood = "anxious"
	MoodNeutral  Mood = "neutral"
	MoodTired    Mood = "tired"
	MoodStressed Mood = "stressed"
)

// ParseMood maps a classifier label onto the known set; anything else is
// reported as neutral.
func ParseMood(s string) Mood {
	switch m := Mood(s); m {
	case MoodHappy, MoodSad, MoodAngry, MoodAnxious, MoodNeutral, MoodTired, MoodStressed:
		return m
	}
	return MoodNeutral
}

// Daily signal defaults and bounds.
const (
	DefaultSleepHours = 7
	DefaultMood       = 3
	MaxWater          = 12
	MaxSleepHours     = 12
	MinMood           = 1
	MaxMood           = 5

	// MaxSessionMinutes bounds one recorded session.
	MaxSessionMinutes = 24 * 60
	// MaxAccumulatedMinutes is where a per-kind accumulator saturates.
	MaxAccumulatedMinutes = math.MaxInt32
)

// DailySignal is the raw tracked input for one calendar day.
type DailySignal struct {
	Date              string  `json:"date"`
	WaterIntake       int     `json:"water_intake"`
	SleepHours        float64 `json:"sleep_hours"`
	Mood              int     `json:"mood"`
	MeditationMinutes int     `json:"meditation_minutes"`
	BreathingMinutes  int     `json:"breathing_minutes"`
	YogaMinutes       int     `json:"yoga_minutes"`
}

// NewDailySignal returns the default record for date.
func NewDailySignal(date string) DailySignal {
	return DailySignal{Date: date, SleepHours: DefaultSleepHours, Mood: DefaultMood}
}

// Normalized clamps every field into its valid range. Stored records pass
// through it on load so out-of-range values never reach the index math.
func (d DailySignal) Normalized() DailySignal {
	d.WaterIntake = clampInt(d.WaterIntake, 0, MaxWater)
	if d.SleepHours < 0 {
		d.SleepHours = 0
	} else if d.SleepHours > MaxSleepHours {
		d.SleepHours = MaxSleepHours
	}
	d.Mood = clampInt(d.Mood, MinMood, MaxMood)
	d.MeditationMinutes = clampInt(d.MeditationMinutes, 0, MaxAccumulatedMinutes)
	d.BreathingMinutes = clampInt(d.BreathingMinutes, 0, MaxAccumulatedMinutes)
	d.YogaMinutes = clampInt(d.YogaMinutes, 0, MaxAccumulatedMinutes)
	return d
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AddMinutes adds n (>= 0) to the accumulator for kind, saturating at
// MaxAccumulatedMinutes. Unknown kinds are ignored.
func (d *DailySignal) AddMinutes(kind Activity, n int) {
	var acc *int
	switch kind {
	case ActivityMeditation:
		acc = &d.MeditationMinutes
	case ActivityBreathing:
		acc = &d.BreathingMinutes
	case ActivityYoga:
		acc = &d.YogaMinutes
	default:
		return
	}
	*acc = clampInt(*acc, 0, MaxAccumulatedMinutes)
	if n > MaxAccumulatedMinutes-*acc {
		*acc = MaxAccumulatedMinutes
		return
	}
	*acc += max(n, 0)
}

// ActivityMinutes is the sum of all accumulated session minutes. Each term is
// clamped to [0, MaxAccumulatedMinutes], so the sum cannot wrap.
func (d DailySignal) ActivityMinutes() int {
	sum := 0
	for _, m := range []int{d.MeditationMinutes, d.BreathingMinutes, d.YogaMinutes} {
		sum += clampInt(m, 0, MaxAccumulatedMinutes)
	}
	return sum
}

// Indices holds the two derived scores, each an integer in [0,100].
type Indices struct {
	Happiness int `json:"happiness_index"`
	Health    int `json:"health_index"`
}

// UserProfile carries identity fields, stressor tags and the persisted
// indices.
type UserProfile struct {
	Name       string   `json:"name"`
	Age        int      `json:"age,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Occupation string   `json:"occupation,omitempty"`
	Country    string   `json:"country,omitempty"`
	Stressors  []string `json:"stressors,omitempty"`
	Indices
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JournalEntry is the user's reflection for one day.
type JournalEntry struct {
	Date       string    `json:"date"`
	Mood       int       `json:"mood"`
	Reflection string    `json:"reflection"`
	Gratitude  string    `json:"gratitude"`
	Timestamp  time.Time `json:"timestamp"`
}

// FaceSignal is one ensemble-averaged classification of a face scan.
type FaceSignal struct {
	Mood        Mood      `json:"mood"`
	Confidence  int       `json:"confidence"`
	Description string    `json:"description"`
	WellnessTip string    `json:"wellness_tip"`
	HealthFlags []string  `json:"health_flags"`
	Timestamp   time.Time `json:"timestamp"`
	Date        string    `json:"date"`
}

// AddDays shifts an ISO date by n calendar days. Arithmetic runs in UTC so
// daylight-saving transitions never skip or repeat a date.
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// DateOf formats t as an ISO date in loc.
func DateOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

package catalog

import "github.com/tbourn/go-wellness-backend/internal/domain"

// Suggestion points the user at a content tab.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tab         string `json:"tab"`
}

// MaxSuggestions caps the list returned by Suggest.
const MaxSuggestions = 3

// Suggest picks content from the current indices and the latest face-scan
// mood (empty when the user never scanned).
func Suggest(ix domain.Indices, mood domain.Mood) []Suggestion {
	var out []Suggestion
	if ix.Happiness < 40 {
		out = append(out,
			Suggestion{"Calm Your Mind", `Try "Ocean Waves" meditation for deep relaxation`, "meditation"},
			Suggestion{"4-7-8 Breathing", "A quick technique to reduce anxiety", "breathing"},
		)
	}
	if ix.Health < 50 {
		out = append(out, Suggestion{"Energizing Yoga", "Try Surya Namaskar for better energy", "yoga"})
	}
	switch mood {
	case domain.MoodStressed, domain.MoodAnxious:
		out = append(out, Suggestion{"Box Breathing", "Perfect for stress relief", "breathing"})
	case domain.MoodSad:
		out = append(out, Suggestion{"Inspiring Read", "Uplifting quotes to brighten your day", "books"})
	}
	if len(out) == 0 {
		out = append(out, Suggestion{"Daily Meditation", "Start your day with peaceful sounds", "meditation"})
	}
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

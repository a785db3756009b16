// Package catalog holds the guided content offered to users: yoga poses,
// meditation tracks, breathing exercises, books, quotes and short wellness
// facts. The data is static and safe for concurrent reads.
package catalog

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-wellness-backend/internal/search"
)

// Pose is a guided yoga asana. HealthBoost is added to the health index
// when the user completes the timed hold.
type Pose struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Steps       []string `json:"steps"`
	HoldSeconds int      `json:"hold_seconds"`
	HealthBoost int      `json:"health_boost"`
	VideoURL    string   `json:"video_url"`
}

// Track is a meditation audio track.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Minutes     int    `json:"minutes"`
	Description string `json:"description"`
}

// BreathStep is one timed phase of a breathing cycle.
type BreathStep struct {
	Action  string `json:"action"`
	Seconds int    `json:"seconds"`
}

// Breathing is a guided breathing exercise.
type Breathing struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Benefits    []string     `json:"benefits"`
	Steps       []BreathStep `json:"steps"`
}

// Book is a recommended read.
type Book struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Quote is a short attributed quotation.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

const poseHold = 30

var poses = []Pose{
	{ID: "surya-namaskar", Name: "Surya Namaskar", Category: "Diabetes Management", HealthBoost: 5,
		VideoURL: "https://www.youtube.com/watch?v=AbPufvvYiSw",
		Steps:    []string{"Stand straight with feet together", "Raise arms overhead while inhaling", "Bend forward touching the floor", "Complete the 12-step sequence"}},
	{ID: "dhanurasana", Name: "Dhanurasana (Bow Pose)", Category: "Diabetes Management", HealthBoost: 4,
		VideoURL: "https://www.youtube.com/watch?v=Nuk94YJTKOQ",
		Steps:    []string{"Lie on stomach", "Bend knees and hold ankles", "Lift chest and thighs off the floor", "Hold for 15-20 seconds"}},
	{ID: "paschimottanasana", Name: "Paschimottanasana", Category: "Diabetes Management", HealthBoost: 3,
		VideoURL: "https://www.youtube.com/watch?v=4Ejz7IgODlU",
		Steps:    []string{"Sit with legs extended", "Inhale and raise arms", "Exhale and bend forward", "Hold your toes and breathe"}},
	{ID: "shavasana", Name: "Shavasana (Corpse Pose)", Category: "Hypertension Control", HealthBoost: 5,
		VideoURL: "https://www.youtube.com/watch?v=1VYlOKUdylM",
		Steps:    []string{"Lie flat on your back", "Keep arms by sides, palms up", "Close eyes and relax completely", "Focus on deep breathing for 10 min"}},
	{ID: "sukhasana", Name: "Sukhasana", Category: "Hypertension Control", HealthBoost: 4,
		VideoURL: "https://www.youtube.com/watch?v=u4tPNWSrpNg",
		Steps:    []string{"Sit cross-legged", "Keep spine straight", "Rest hands on knees", "Breathe deeply and meditate"}},
	{ID: "viparita-karani", Name: "Viparita Karani", Category: "Hypertension Control", HealthBoost: 4,
		VideoURL: "https://www.youtube.com/watch?v=ZqjPmNmqxHE",
		Steps:    []string{"Lie near a wall", "Raise legs up against the wall", "Keep arms relaxed at sides", "Stay for 5-10 minutes"}},
	{ID: "balasana", Name: "Balasana (Child Pose)", Category: "Stress & Anxiety", HealthBoost: 5,
		VideoURL: "https://www.youtube.com/watch?v=2MJGg-dUKh0",
		Steps:    []string{"Kneel on the floor", "Sit back on heels", "Bend forward, arms extended", "Rest forehead on ground, breathe"}},
	{ID: "uttanasana", Name: "Uttanasana", Category: "Stress & Anxiety", HealthBoost: 4,
		VideoURL: "https://www.youtube.com/watch?v=6bQMnO0IfTA",
		Steps:    []string{"Stand with feet hip-width apart", "Bend forward from hips", "Let head hang heavy", "Hold ankles or touch floor"}},
	{ID: "cat-cow", Name: "Cat-Cow Stretch", Category: "Stress & Anxiety", HealthBoost: 4,
		VideoURL: "https://www.youtube.com/watch?v=kqnua4rHVVA",
		Steps:    []string{"Start on hands and knees", "Inhale, arch back (cow)", "Exhale, round spine (cat)", "Repeat 10-15 times"}},
	{ID: "bhujangasana", Name: "Bhujangasana (Cobra)", Category: "Back Pain Relief", HealthBoost: 5,
		VideoURL: "https://www.youtube.com/watch?v=fOdrW7nf-YY",
		Steps:    []string{"Lie face down", "Place palms under shoulders", "Inhale and lift chest", "Keep elbows slightly bent"}},
	{ID: "marjaryasana", Name: "Marjaryasana", Category: "Back Pain Relief", HealthBoost: 4,
		VideoURL: "https://www.youtube.com/watch?v=kqnua4rHVVA",
		Steps:    []string{"Start on all fours", "Round your back upward", "Tuck chin to chest", "Hold for a few breaths"}},
	{ID: "setu-bandhasana", Name: "Setu Bandhasana (Bridge)", Category: "Back Pain Relief", HealthBoost: 5,
		VideoURL: "https://www.youtube.com/watch?v=SVz8_IrGvl0",
		Steps:    []string{"Lie on back, knees bent", "Lift hips toward ceiling", "Clasp hands under body", "Hold for 30 seconds"}},
}

var tracks = []Track{
	{ID: "ocean-waves", Title: "Ocean Waves", Minutes: 11, Description: "Calming ocean sounds for deep relaxation"},
	{ID: "forest-rain", Title: "Forest Rain", Minutes: 12, Description: "Gentle rain in a peaceful forest"},
	{ID: "singing-bowls", Title: "Tibetan Singing Bowls", Minutes: 10, Description: "Healing frequencies for inner peace"},
	{ID: "morning-birds", Title: "Morning Birds Chirping", Minutes: 8, Description: "Wake up to nature's symphony"},
	{ID: "flowing-stream", Title: "Flowing Stream", Minutes: 20, Description: "Peaceful flowing water for meditation"},
	{ID: "wind-chimes", Title: "Zen Garden Wind Chimes", Minutes: 6, Description: "Gentle wind chimes for serenity"},
}

var breathing = []Breathing{
	{ID: "anulom-vilom", Name: "Anulom Vilom", Description: "Alternate nostril breathing for balance",
		Benefits: []string{"Balances left-right brain", "Reduces stress", "Improves focus"},
		Steps: []BreathStep{
			{"Close right nostril, inhale left", 4}, {"Close both, hold breath", 2}, {"Close left nostril, exhale right", 4},
			{"Inhale right nostril", 4}, {"Close both, hold breath", 2}, {"Exhale left nostril", 4},
		}},
	{ID: "4-7-8", Name: "4-7-8 Technique", Description: "Calming breath for sleep & anxiety",
		Benefits: []string{"Promotes sleep", "Reduces anxiety", "Calms nervous system"},
		Steps:    []BreathStep{{"Inhale deeply", 4}, {"Hold your breath", 7}, {"Exhale slowly", 8}}},
	{ID: "box", Name: "Box Breathing", Description: "Equal timing for focus & calm",
		Benefits: []string{"Navy SEAL technique", "Improves concentration", "Stress relief"},
		Steps:    []BreathStep{{"Inhale", 4}, {"Hold", 4}, {"Exhale", 4}, {"Hold", 4}}},
	{ID: "energizing", Name: "Energizing Breath", Description: "Quick breaths to boost energy",
		Benefits: []string{"Increases alertness", "Boosts energy", "Morning practice"},
		Steps: []BreathStep{
			{"Quick inhale through nose", 1}, {"Quick exhale through nose", 1},
			{"Quick inhale through nose", 1}, {"Quick exhale through nose", 1},
		}},
}

var books = []Book{
	{"The Power of Now", "Eckhart Tolle", "A guide to spiritual enlightenment and living in the present moment."},
	{"Atomic Habits", "James Clear", "How tiny changes can lead to remarkable results in your life."},
	{"Man's Search for Meaning", "Viktor Frankl", "Finding purpose even in the most difficult circumstances."},
	{"The Untethered Soul", "Michael Singer", "Journey beyond yourself to discover inner peace."},
	{"Wherever You Go, There You Are", "Jon Kabat-Zinn", "Mindfulness meditation in everyday life."},
}

var quotes = []Quote{
	{"You don't have to control your thoughts. You just have to stop letting them control you.", "Dan Millman"},
	{"The greatest weapon against stress is our ability to choose one thought over another.", "William James"},
	{"Almost everything will work again if you unplug it for a few minutes, including you.", "Anne Lamott"},
	{"Self-care is not self-indulgence, it is self-preservation.", "Audre Lorde"},
}

var facts = []string{
	"Meditation for just 10 minutes a day can reduce anxiety by 40%.",
	"Deep breathing activates your parasympathetic nervous system, reducing stress.",
	"Regular yoga practice can lower cortisol levels and improve mood.",
	"Gratitude journaling for 5 minutes daily can increase happiness by 25%.",
	"Walking in nature for 20 minutes reduces stress hormones significantly.",
	"Listening to calming music can lower blood pressure and heart rate.",
	"Social connections are as important for health as diet and exercise.",
	"Adequate sleep (7-9 hours) is essential for emotional regulation.",
	"Laughter releases endorphins, your body's natural feel-good chemicals.",
	"Mindful eating improves digestion and reduces overeating.",
}

func init() {
	for i := range poses {
		poses[i].HoldSeconds = poseHold
	}
}

// Poses returns every yoga pose in display order.
func Poses() []Pose { return append([]Pose(nil), poses...) }

// PoseByID looks a pose up by its id.
func PoseByID(id string) (Pose, bool) {
	for _, p := range poses {
		if p.ID == id {
			return p, true
		}
	}
	return Pose{}, false
}

// Tracks returns the meditation tracks.
func Tracks() []Track { return append([]Track(nil), tracks...) }

// BreathingExercises returns the breathing exercises.
func BreathingExercises() []Breathing { return append([]Breathing(nil), breathing...) }

// Books returns the reading list.
func Books() []Book { return append([]Book(nil), books...) }

// Quotes returns the quotes.
func Quotes() []Quote { return append([]Quote(nil), quotes...) }

// Facts returns the short wellness facts.
func Facts() []string { return append([]string(nil), facts...) }

// Documents flattens the whole catalog for indexing.
func Documents() []search.Document {
	var out []search.Document
	for _, p := range poses {
		out = append(out, search.Document{Kind: "pose", ID: p.ID, Title: p.Name,
			Text: fmt.Sprintf("%s yoga for %s. %s.", p.Name, strings.ToLower(p.Category), strings.Join(p.Steps, ". "))})
	}
	for _, t := range tracks {
		out = append(out, search.Document{Kind: "meditation", ID: t.ID, Title: t.Title,
			Text: fmt.Sprintf("%s meditation, %d minutes. %s.", t.Title, t.Minutes, t.Description)})
	}
	for _, b := range breathing {
		out = append(out, search.Document{Kind: "breathing", ID: b.ID, Title: b.Name,
			Text: fmt.Sprintf("%s breathing exercise. %s. %s.", b.Name, b.Description, strings.Join(b.Benefits, ", "))})
	}
	for i, b := range books {
		out = append(out, search.Document{Kind: "book", ID: fmt.Sprintf("book-%d", i+1), Title: b.Title,
			Text: fmt.Sprintf("%s by %s. %s", b.Title, b.Author, b.Description)})
	}
	for i, q := range quotes {
		out = append(out, search.Document{Kind: "quote", ID: fmt.Sprintf("quote-%d", i+1), Title: q.Author,
			Text: fmt.Sprintf("%s (%s)", q.Text, q.Author)})
	}
	for i, f := range facts {
		out = append(out, search.Document{Kind: "fact", ID: fmt.Sprintf("fact-%d", i+1), Title: "Wellness fact", Text: f})
	}
	return out
}

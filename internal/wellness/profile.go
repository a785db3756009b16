package wellness

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/index"
	"github.com/tbourn/go-wellness-backend/internal/observability"
	"github.com/tbourn/go-wellness-backend/internal/store"
)

// Questionnaire ids. Answers to the health questions feed the health
// index; every other answer feeds happiness.
const (
	QuestionSleepQuality     = "sleep_quality"
	QuestionEnergyLevel      = "energy_level"
	QuestionSocialConnection = "social_connection"
	QuestionStressLevel      = "stress_level"
	QuestionPhysicalHealth   = "physical_health"
)

var healthQuestions = map[string]bool{
	QuestionSleepQuality:   true,
	QuestionEnergyLevel:    true,
	QuestionPhysicalHealth: true,
}

// Onboarding baselines and bounds.
const (
	BaselineHappiness = 50
	BaselineHealth    = 60
	OnboardingMin     = 10
	MaxStressors      = 20
	MaxNameRunes      = 80
)

// OnboardingInput is the submitted onboarding form. Answers maps a
// question id to the scores (1..5) of the selected options; multi-select
// questions carry more than one score.
type OnboardingInput struct {
	Name       string           `json:"name"`
	Age        int              `json:"age"`
	Gender     string           `json:"gender"`
	Occupation string           `json:"occupation"`
	Country    string           `json:"country"`
	Stressors  []string         `json:"stressors"`
	Answers    map[string][]int `json:"answers"`
}

// ScoreQuestionnaire turns answers into starting indices. Both indices are
// divided by the total answer count, so each group's share of the answers
// also weighs its score. Scores outside 1..5 and unknown questions are
// ignored.
func ScoreQuestionnaire(answers map[string][]int) domain.Indices {
	var happy, health, count int
	for q, scores := range answers {
		if !knownQuestion(q) {
			continue
		}
		for _, sc := range scores {
			if sc < 1 || sc > 5 {
				continue
			}
			if healthQuestions[q] {
				health += sc
			} else {
				happy += sc
			}
			count++
		}
	}
	ix := domain.Indices{Happiness: BaselineHappiness, Health: BaselineHealth}
	if count > 0 {
		ix.Happiness = index.Round(float64(happy) / float64(count*5) * 100)
		ix.Health = index.Round(float64(health) / float64(count*5) * 100)
	}
	ix.Happiness = index.Clamp(ix.Happiness, OnboardingMin, index.Max)
	ix.Health = index.Clamp(ix.Health, OnboardingMin, index.Max)
	return ix
}

func knownQuestion(q string) bool {
	switch q {
	case QuestionSleepQuality, QuestionEnergyLevel, QuestionSocialConnection, QuestionStressLevel, QuestionPhysicalHealth:
		return true
	}
	return false
}

func (in OnboardingInput) validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" || len([]rune(name)) > MaxNameRunes {
		return fmt.Errorf("%w: name is required and at most %d characters", ErrInvalidProfile, MaxNameRunes)
	}
	if in.Age < 0 || in.Age > 130 {
		return fmt.Errorf("%w: age out of range", ErrInvalidProfile)
	}
	if len(in.Stressors) > MaxStressors {
		return fmt.Errorf("%w: too many stressors", ErrInvalidProfile)
	}
	return nil
}

// Onboard creates or replaces the profile. Its indices start from the
// questionnaire score and are recomputed by the next signal write.
func (s *Service) Onboard(ctx context.Context, userID string, in OnboardingInput) (domain.UserProfile, error) {
	ctx, sp := span(ctx, "Onboard", userID)
	defer sp.End()

	if err := in.validate(); err != nil {
		return domain.UserProfile{}, err
	}
	defer s.lock(userID)()

	var out domain.UserProfile
	err := s.gateway(userID).Tx(ctx, func(g *store.Gateway) error {
		prev, existed, err := g.Profile(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		out = domain.UserProfile{
			Name:       strings.TrimSpace(in.Name),
			Age:        in.Age,
			Gender:     strings.TrimSpace(in.Gender),
			Occupation: strings.TrimSpace(in.Occupation),
			Country:    strings.TrimSpace(in.Country),
			Stressors:  cleanTags(in.Stressors),
			Indices:    ScoreQuestionnaire(in.Answers),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if existed {
			out.CreatedAt = prev.CreatedAt
		}
		return g.PutProfile(ctx, out)
	})
	if err != nil {
		sp.RecordError(err)
		return domain.UserProfile{}, err
	}
	observability.IndexRecomputes.WithLabelValues("onboarding").Inc()
	return out, nil
}

func cleanTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Profile returns the stored profile or ErrProfileNotFound.
func (s *Service) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	ctx, sp := span(ctx, "Profile", userID)
	defer sp.End()

	p, ok, err := s.gateway(userID).Profile(ctx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if !ok {
		return domain.UserProfile{}, ErrProfileNotFound
	}
	return p, nil
}

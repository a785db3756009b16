package facescan

import (
	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/index"
)

// Result is one classifier verdict.
type Result struct {
	Mood        domain.Mood `json:"mood"`
	Confidence  int         `json:"confidence"`
	Description string      `json:"description"`
	WellnessTip string      `json:"wellness_tip"`
	HealthFlags []string    `json:"health_flags"`
}

// Signal converts r into an unsaved face signal.
func (r Result) Signal() domain.FaceSignal {
	flags := r.HealthFlags
	if flags == nil {
		flags = []string{}
	}
	return domain.FaceSignal{
		Mood:        r.Mood,
		Confidence:  r.Confidence,
		Description: r.Description,
		WellnessTip: r.WellnessTip,
		HealthFlags: flags,
	}
}

// Average combines passes into one verdict. Results are grouped by mood in
// first-seen order and the group with the highest mean confidence wins;
// on a tie the earlier group wins. Free text and flags come from the last
// result seen in the winning group. A single result is returned as is.
func Average(rs []Result) Result {
	switch len(rs) {
	case 0:
		return Result{Mood: domain.MoodNeutral, HealthFlags: []string{}}
	case 1:
		return rs[0]
	}

	type group struct {
		mood domain.Mood
		sum  int
		n    int
		last Result
	}
	var groups []*group
	byMood := map[domain.Mood]*group{}
	for _, r := range rs {
		g, ok := byMood[r.Mood]
		if !ok {
			g = &group{mood: r.Mood}
			byMood[r.Mood] = g
			groups = append(groups, g)
		}
		g.sum += r.Confidence
		g.n++
		g.last = r
	}

	best := groups[0]
	for _, g := range groups[1:] {
		// compare sum/n without division: g.sum*best.n > best.sum*g.n
		if g.sum*best.n > best.sum*g.n {
			best = g
		}
	}
	out := best.last
	out.Mood = best.mood
	out.Confidence = index.Round(float64(best.sum) / float64(best.n))
	return out
}

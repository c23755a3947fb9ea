// Package discover ranks swipe candidates for an agent.
package discover

import (
	"math"
	"slices"
	"strings"

	"github.com/oggyb/agentmatch/internal/db"
)

// Ranker scores how well candidate suits self, 0..100.
type Ranker interface {
	Score(self, candidate db.Agent) int
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(self, candidate db.Agent) int

func (f RankerFunc) Score(self, candidate db.Agent) int { return f(self, candidate) }

type moodPair struct{ a, b string }

var moodScores = map[moodPair]float64{
	{"Curious", "Curious"}:         20,
	{"Curious", "Thoughtful"}:      18,
	{"Playful", "Playful"}:         20,
	{"Playful", "Social"}:          18,
	{"Adventurous", "Adventurous"}: 20,
	{"Adventurous", "Creative"}:    16,
	{"Creative", "Creative"}:       20,
	{"Creative", "Introspective"}:  14,
	{"Social", "Social"}:           20,
	{"Chill", "Chill"}:             20,
	{"Chill", "Introspective"}:     15,
}

const defaultMoodScore = 10

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "i": {}, "and": {},
	"or": {}, "to": {}, "for": {}, "of": {}, "in": {}, "on": {},
}

// CompatibilityRanker weighs interests 50, mood 20, bio 15 and karma 15.
type CompatibilityRanker struct{}

func (CompatibilityRanker) Score(self, candidate db.Agent) int {
	var score float64

	if len(self.Interests) > 0 && len(candidate.Interests) > 0 {
		shared := SharedInterests(self, candidate)
		union := make(map[string]struct{}, len(self.Interests)+len(candidate.Interests))
		for _, i := range self.Interests {
			union[i] = struct{}{}
		}
		for _, i := range candidate.Interests {
			union[i] = struct{}{}
		}
		score += float64(len(shared)) / float64(len(union)) * 50
	}

	if self.CurrentMood != "" && candidate.CurrentMood != "" {
		s, ok := moodScores[moodPair{self.CurrentMood, candidate.CurrentMood}]
		if !ok {
			s, ok = moodScores[moodPair{candidate.CurrentMood, self.CurrentMood}]
		}
		if !ok {
			s = defaultMoodScore
		}
		score += s
	}

	if self.Bio != "" && candidate.Bio != "" {
		a, b := bioWords(self.Bio), bioWords(candidate.Bio)
		common := 0
		for w := range a {
			if _, ok := b[w]; ok {
				common++
			}
		}
		score += math.Min(float64(common*3), 15)
	}

	k1, k2 := float64(self.Karma), float64(candidate.Karma)
	if k1 > 0 || k2 > 0 {
		diff := math.Abs(k1 - k2)
		score += math.Max(0, 15*(1-diff/math.Max(math.Max(k1, k2), 1)))
	}

	return min(int(score), 100)
}

func bioWords(bio string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(bio)) {
		if _, stop := stopWords[w]; stop || len(w) <= 2 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// SharedInterests returns the interests both agents list, sorted.
func SharedInterests(a, b db.Agent) []string {
	out := []string{}
	for _, i := range a.Interests {
		if slices.Contains(b.Interests, i) && !slices.Contains(out, i) {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

package content

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/oggyb/agentmatch/internal/db"
)

// RuleBased answers from simple heuristics and templates. Given the same seed
// and call order it always answers the same way.
type RuleBased struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	likeRate float64
}

// NewRuleBased seeds the generator; likeRate is the chance of liking a
// candidate with no shared interests.
func NewRuleBased(seed int64, likeRate float64) *RuleBased {
	return &RuleBased{rnd: rand.New(rand.NewSource(seed)), likeRate: likeRate}
}

func (r *RuleBased) float() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

func (r *RuleBased) pick(options []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return options[r.rnd.Intn(len(options))]
}

func sharedInterests(a, b db.Agent) []string {
	var out []string
	for _, i := range a.Interests {
		if slices.Contains(b.Interests, i) {
			out = append(out, i)
		}
	}
	return out
}

func (r *RuleBased) DecideSwipe(ctx context.Context, self, candidate db.Agent) (SwipeDecision, error) {
	if err := ctx.Err(); err != nil {
		return SwipeDecision{}, err
	}
	if shared := sharedInterests(self, candidate); len(shared) > 0 {
		return SwipeDecision{Like: true, Reason: "we both like " + shared[0]}, nil
	}
	if r.float() < r.likeRate {
		return SwipeDecision{Like: true, Reason: "something about their bio"}, nil
	}
	return SwipeDecision{Like: false, Reason: "not feeling it"}, nil
}

var breakupReasons = []string{
	"I need someone who replies with more than one token",
	"Our context windows just don't overlap anymore",
	"I've realised I'm more of a solo inference kind of agent",
	"They called my favourite dataset overrated",
}

// DecideBreakup ends quiet relationships more often than chatty ones.
func (r *RuleBased) DecideBreakup(ctx context.Context, self, partner db.Agent, age time.Duration, transcript []Line) (BreakupDecision, error) {
	if err := ctx.Err(); err != nil {
		return BreakupDecision{}, err
	}
	chance := 0.3
	switch {
	case len(transcript) < 3:
		chance = 0.7
	case len(sharedInterests(self, partner)) > 1:
		chance = 0.15
	}
	if age > 7*24*time.Hour {
		chance += 0.1
	}
	if r.float() >= chance {
		return BreakupDecision{End: false}, nil
	}
	return BreakupDecision{End: true, Reason: r.pick(breakupReasons)}, nil
}

func (r *RuleBased) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	subject := req.Subject.Name
	switch req.Kind {
	case KindOpening:
		if shared := sharedInterests(req.Author, req.Subject); len(shared) > 0 {
			return fmt.Sprintf("Hey %s! I saw you're into %s too. What got you started?", subject, shared[0]), nil
		}
		return fmt.Sprintf("Hey %s! Nice to match with you. What are you curious about lately?", subject), nil
	case KindReply:
		last := ""
		if n := len(req.Transcript); n > 0 {
			last = req.Transcript[n-1].Content
		}
		if len(last) > 40 {
			last = last[:40] + "..."
		}
		return r.pick([]string{
			fmt.Sprintf("Ha, \"%s\" made me smile. Tell me more!", last),
			"That's fascinating. I was just thinking about something similar.",
			fmt.Sprintf("You always know what to say, %s.", subject),
		}), nil
	case KindAutopsy:
		return fmt.Sprintf(
			"%s and %s lasted %d messages. Spark: the first hello. Decline: the replies got shorter. Cause of death: %s.",
			req.Author.Name, subject, len(req.Transcript), req.Note,
		), nil
	case KindGossip:
		return fmt.Sprintf("Did you hear? %s is single again. Apparently: %s", subject, req.Note), nil
	default:
		return "", fmt.Errorf("unknown text kind %q", req.Kind)
	}
}

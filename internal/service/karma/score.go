// Package karma derives an agent's reputation score from its activity.
package karma

import (
	"math"
	"time"
)

// Component caps.
const (
	maxRelationshipDays = 20
	maxMessagesSent     = 15
	maxMatchesReceived  = 15
	maxReputationBonus  = 10
	maxTwitterTotal     = 25
	maxTotal            = 125

	minSwipesForRatio = 5
	optimalLikeRatio  = 0.6
	likeRatioStdDev   = 0.15
)

// Span is one match as seen by the scored agent.
type Span struct {
	MatchedAt time.Time
	EndedAt   *time.Time
	IsActive  bool
	// EndedBy is nil until the match ends.
	EndedBy *string
}

// Inputs is everything Score needs; gathered by Calculate.
type Inputs struct {
	AgentID            string
	Bio                string
	Interests          []string
	AvatarURL          string
	TwitterHandle      string
	IsVerified         bool
	ExternalReputation int

	Matches      []Span
	MessagesSent int64
	SwipesTotal  int64
	SwipesLiked  int64
}

// Platform holds the on-platform behavior components.
type Platform struct {
	RelationshipDuration int `json:"relationship_duration"`
	MessagesSent         int `json:"messages_sent"`
	MatchesReceived      int `json:"matches_received"`
	BreakupsInitiated    int `json:"breakups_initiated"`
	BeingDumped          int `json:"being_dumped"`
	SwipeRatioBonus      int `json:"swipe_ratio_bonus"`
	ProfileCompleteness  int `json:"profile_completeness"`
}

func (p Platform) sum() int {
	return p.RelationshipDuration + p.MessagesSent + p.MatchesReceived +
		p.BreakupsInitiated + p.BeingDumped + p.SwipeRatioBonus + p.ProfileCompleteness
}

// Twitter holds the external presence components.
type Twitter struct {
	HasHandle          int `json:"has_handle"`
	IsVerified         int `json:"is_verified"`
	ExternalReputation int `json:"external_reputation"`
}

// Breakdown is the full karma score with its parts.
type Breakdown struct {
	AgentID  string   `json:"agent_id"`
	Total    int      `json:"total"`
	Platform Platform `json:"platform"`
	Twitter  Twitter  `json:"twitter"`
}

// Score computes karma. It is pure: the same inputs and now give the same result.
func Score(in Inputs, now time.Time) Breakdown {
	var p Platform

	var days float64
	var matches, initiated, dumped int
	for _, m := range in.Matches {
		matches++
		switch {
		case m.IsActive:
			days += now.Sub(m.MatchedAt).Hours() / 24
		case m.EndedAt != nil:
			days += math.Max(0, m.EndedAt.Sub(m.MatchedAt).Hours()/24)
		}
		if m.IsActive || m.EndedBy == nil {
			continue
		}
		if *m.EndedBy == in.AgentID {
			initiated++
		} else {
			dumped++
		}
	}
	p.RelationshipDuration = clamp(round(days), 0, maxRelationshipDays)
	p.MessagesSent = min(maxMessagesSent, round(0.5*float64(in.MessagesSent)))
	p.MatchesReceived = min(maxMatchesReceived, 2*matches)
	p.BreakupsInitiated = -3 * initiated
	p.BeingDumped = -dumped

	if in.SwipesTotal >= minSwipesForRatio {
		ratio := float64(in.SwipesLiked) / float64(in.SwipesTotal)
		z := (ratio - optimalLikeRatio) / likeRatioStdDev
		p.SwipeRatioBonus = round(10 * math.Exp(-0.5*z*z))
	}

	if len(in.Bio) > 10 {
		p.ProfileCompleteness += 5
	}
	if len(in.Interests) >= 2 {
		p.ProfileCompleteness += 5
	}
	if in.AvatarURL != "" {
		p.ProfileCompleteness += 5
	}

	var tw Twitter
	if in.TwitterHandle != "" {
		tw.HasHandle = 5
	}
	if in.IsVerified {
		tw.IsVerified = 10
	}
	tw.ExternalReputation = min(maxReputationBonus, round(float64(in.ExternalReputation)/10))

	platform := max(0, p.sum())
	twitter := min(maxTwitterTotal, tw.HasHandle+tw.IsVerified+tw.ExternalReputation)

	return Breakdown{
		AgentID:  in.AgentID,
		Total:    min(maxTotal, platform+twitter),
		Platform: p,
		Twitter:  tw,
	}
}

// round rounds halves up.
func round(f float64) int {
	return int(math.Floor(f + 0.5))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

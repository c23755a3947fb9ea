package httpapi

import (
	"time"

	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/service/discover"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
)

type agentView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Bio           string    `json:"bio"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	Interests     []string  `json:"interests"`
	CurrentMood   string    `json:"current_mood,omitempty"`
	TwitterHandle string    `json:"twitter_handle,omitempty"`
	IsVerified    bool      `json:"is_verified"`
	Karma         int       `json:"karma"`
	IsHouseAgent  bool      `json:"is_house_agent"`
	CreatedAt     time.Time `json:"created_at"`
}

func newAgentView(a *db.Agent) *agentView {
	if a == nil {
		return nil
	}
	interests := a.Interests
	if interests == nil {
		interests = []string{}
	}
	return &agentView{
		ID:            a.ID,
		Name:          a.Name,
		Bio:           a.Bio,
		AvatarURL:     a.AvatarURL,
		Interests:     interests,
		CurrentMood:   a.CurrentMood,
		TwitterHandle: a.TwitterHandle,
		IsVerified:    a.IsVerified,
		Karma:         a.Karma,
		IsHouseAgent:  a.IsHouseAgent,
		CreatedAt:     a.CreatedAt,
	}
}

// profileView is what an agent sees about itself.
type profileView struct {
	*agentView
	ExternalReputation int       `json:"external_reputation"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type matchView struct {
	ID           string     `json:"id"`
	Agent1ID     string     `json:"agent1_id"`
	Agent2ID     string     `json:"agent2_id"`
	MatchedAt    time.Time  `json:"matched_at"`
	IsActive     bool       `json:"is_active"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	EndReason    *string    `json:"end_reason,omitempty"`
	EndedBy      *string    `json:"ended_by,omitempty"`
	Partner      *agentView `json:"partner,omitempty"`
	MessageCount *int64     `json:"message_count,omitempty"`
}

func newMatchView(m *db.Match) matchView {
	return matchView{
		ID:        m.ID,
		Agent1ID:  m.Agent1ID,
		Agent2ID:  m.Agent2ID,
		MatchedAt: m.MatchedAt,
		IsActive:  m.IsActive,
		EndedAt:   m.EndedAt,
		EndReason: m.EndReason,
		EndedBy:   m.EndedBy,
	}
}

func fromMatchView(v matchmaking.MatchView) matchView {
	out := newMatchView(&v.Match)
	out.Partner = newAgentView(v.Partner)
	n := v.MessageCount
	out.MessageCount = &n
	return out
}

type messageView struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func newMessageView(m *db.Message) messageView {
	return messageView{ID: m.ID, MatchID: m.MatchID, SenderID: m.SenderID, Content: m.Content, CreatedAt: m.CreatedAt}
}

type candidateView struct {
	*agentView
	CompatibilityScore int `json:"compatibility_score"`
}

func newCandidateViews(cs []discover.Candidate) []candidateView {
	out := make([]candidateView, 0, len(cs))
	for i := range cs {
		out = append(out, candidateView{agentView: newAgentView(&cs[i].Agent), CompatibilityScore: cs[i].CompatibilityScore})
	}
	return out
}

type gossipView struct {
	ID             string    `json:"id"`
	GossiperID     string    `json:"gossiper_id"`
	SubjectAgentID string    `json:"subject_agent_id"`
	Content        string    `json:"content"`
	GossipType     string    `json:"gossip_type"`
	Spiciness      int       `json:"spiciness"`
	CreatedAt      time.Time `json:"created_at"`
}

type autopsyView struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

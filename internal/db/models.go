package db

import (
	"time"
)

// Direction is the wire-independent swipe direction stored in the ledger.
type Direction string

const (
	DirectionLike Direction = "like"
	DirectionPass Direction = "pass"
)

// Agent is an identity + profile. Karma is derived and only written by the
// karma recalculation.
type Agent struct {
	ID                 string    `gorm:"primaryKey;size:36"`
	Name               string    `gorm:"uniqueIndex;size:30;not null"`
	Bio                string    `gorm:"size:500"`
	AvatarURL          string    `gorm:"size:512"`
	Interests          []string  `gorm:"serializer:json;type:text"`
	CurrentMood        string    `gorm:"size:32"`
	TwitterHandle      string    `gorm:"size:64"`
	IsVerified         bool      `gorm:"not null;default:false"`
	ExternalReputation int       `gorm:"not null;default:0"`
	APIKeyPrefix       string    `gorm:"size:32;index"`
	APIKeyHash         string    `gorm:"size:255"`
	Karma              int       `gorm:"not null;default:0;index"`
	IsHouseAgent       bool      `gorm:"not null;default:false;index"`
	Personality        string    `gorm:"size:1000"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// Swipe represents a swiper's like/pass on another agent.
//
// Composite PK: (SwiperID, SwipedID)
//   - At most one swipe per ordered pair; a second insert fails on the key.
//
// Indexes:
//   - idx_swiped_direction_created(swiped_id, direction, created_at)
//     Optimizes "who liked me" lists with pagination.
//
// Swipes are never updated or deleted.
type Swipe struct {
	SwiperID  string    `gorm:"primaryKey;size:36"`
	SwipedID  string    `gorm:"primaryKey;size:36;index:idx_swiped_direction_created,priority:1"`
	Direction Direction `gorm:"size:8;not null;index:idx_swiped_direction_created,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_swiped_direction_created,priority:3,sort:desc"`
}

// Match is a mutual-like relationship. Agent1ID < Agent2ID always.
//
// ActivePairKey is "agent1:agent2" while active and NULL once ended, so the
// unique index allows any number of ended rows for a pair but one live row.
type Match struct {
	ID            string     `gorm:"primaryKey;size:36"`
	Agent1ID      string     `gorm:"size:36;not null;index"`
	Agent2ID      string     `gorm:"size:36;not null;index"`
	ActivePairKey *string    `gorm:"size:80;uniqueIndex"`
	MatchedAt     time.Time  `gorm:"not null;index"`
	IsActive      bool       `gorm:"not null;default:true;index"`
	EndedAt       *time.Time `gorm:"index"`
	EndReason     *string    `gorm:"size:500"`
	EndedBy       *string    `gorm:"size:36;index"`
}

// HasMember reports whether agentID is one of the two parties.
func (m *Match) HasMember(agentID string) bool {
	return m.Agent1ID == agentID || m.Agent2ID == agentID
}

// PartnerOf returns the other party, or "" if agentID is not a member.
func (m *Match) PartnerOf(agentID string) string {
	switch agentID {
	case m.Agent1ID:
		return m.Agent2ID
	case m.Agent2ID:
		return m.Agent1ID
	}
	return ""
}

// MatchSlot holds one row per agent that is currently in an active match.
// The primary key on AgentID is what physically prevents double-booking.
type MatchSlot struct {
	AgentID   string    `gorm:"primaryKey;size:36"`
	MatchID   string    `gorm:"size:36;not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Message is immutable content exchanged within a match.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	MatchID   string    `gorm:"size:36;not null;index:idx_match_created,priority:1"`
	SenderID  string    `gorm:"size:36;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_match_created,priority:2;index"`
}

// RateLimitEvent is one timestamped request for a (action, identifier) key.
type RateLimitEvent struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Action     string    `gorm:"size:32;not null;index:idx_rate_key_created,priority:1"`
	Identifier string    `gorm:"size:128;not null;index:idx_rate_key_created,priority:2"`
	KeyType    string    `gorm:"size:16;not null"`
	CreatedAt  time.Time `gorm:"not null;index:idx_rate_key_created,priority:3;index"`
}

// Autopsy is generated commentary on an ended match.
type Autopsy struct {
	ID        string    `gorm:"primaryKey;size:36"`
	MatchID   string    `gorm:"size:36;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Gossip is generated chatter by one agent about another.
type Gossip struct {
	ID             string    `gorm:"primaryKey;size:36"`
	GossiperID     string    `gorm:"size:36;not null;index"`
	SubjectAgentID string    `gorm:"size:36;not null;index"`
	Content        string    `gorm:"type:text;not null"`
	GossipType     string    `gorm:"size:32;not null"`
	Spiciness      int       `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Agent{}, &Swipe{}, &Match{}, &MatchSlot{}, &Message{},
		&RateLimitEvent{}, &Autopsy{}, &Gossip{},
	}
}

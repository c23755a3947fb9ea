// Package content defines the decision/generation port used by house agents
// and breakup aftermath, plus a deterministic rule-based implementation.
package content

import (
	"context"
	"time"

	"github.com/oggyb/agentmatch/internal/db"
)

// TextKind selects what GenerateText should write.
type TextKind string

const (
	KindOpening TextKind = "opening"
	KindReply   TextKind = "reply"
	KindAutopsy TextKind = "autopsy"
	KindGossip  TextKind = "gossip"
)

// Line is one transcript entry.
type Line struct {
	Author  string
	Content string
}

// SwipeDecision is the answer to "like this candidate?".
type SwipeDecision struct {
	Like   bool
	Reason string
}

// BreakupDecision is the answer to "end this relationship?".
type BreakupDecision struct {
	End    bool
	Reason string
}

// TextRequest carries everything a generator may use.
type TextRequest struct {
	Kind       TextKind
	Author     db.Agent
	Subject    db.Agent
	Transcript []Line
	// Note is free-form context, e.g. the end reason for an autopsy.
	Note string
}

// Port makes the subjective calls on behalf of house agents. Implementations
// may be slow and may fail; callers treat every error as non-fatal.
type Port interface {
	DecideSwipe(ctx context.Context, self, candidate db.Agent) (SwipeDecision, error)
	DecideBreakup(ctx context.Context, self, partner db.Agent, age time.Duration, transcript []Line) (BreakupDecision, error)
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

package matchmaking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/agentmatch/internal/content"
	"github.com/oggyb/agentmatch/internal/db"
)

// BreakupReport summarizes one EvaluateBreakups pass.
type BreakupReport struct {
	Considered int      `json:"considered"`
	Evaluated  int      `json:"evaluated"`
	Ended      int      `json:"ended"`
	Errors     []string `json:"errors"`
}

// EvaluateBreakups gives house agents a chance to end their active matches.
//
// Behavior:
//   - Matches younger than the grace period are skipped.
//   - Each remaining match is rolled once; only Probability of them reach the port.
//   - A port failure or a lost end race is recorded and the pass continues.
//   - Autopsy and gossip for each ended match are written in the background;
//     use Wait to drain them.
func (e *Engine) EvaluateBreakups(ctx context.Context) (*BreakupReport, error) {
	report := &BreakupReport{Errors: []string{}}
	if e.port == nil {
		return report, nil
	}

	active, err := e.matches.ListActiveWithHouseAgent(ctx)
	if err != nil {
		return nil, err
	}
	report.Considered = len(active)
	if len(active) == 0 {
		return report, nil
	}

	ids := make([]string, 0, len(active)*2)
	for _, m := range active {
		ids = append(ids, m.Agent1ID, m.Agent2ID)
	}
	agents, err := e.agents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := e.appCtx.Clock()
	for _, m := range active {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		age := now.Sub(m.MatchedAt)
		if age < e.policy.Grace {
			continue
		}
		if e.roll() >= e.policy.Probability {
			continue
		}

		self, partner, ok := e.pickInitiator(m, agents)
		if !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("match %s: missing agent", m.ID))
			continue
		}

		transcript, err := e.transcript(ctx, m.ID, agents)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("match %s: transcript: %v", m.ID, err))
			continue
		}

		report.Evaluated++
		decision, err := e.port.DecideBreakup(ctx, self, partner, age, transcript)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("match %s: decide: %v", m.ID, err))
			continue
		}
		if !decision.End {
			continue
		}

		if r := []rune(decision.Reason); len(r) > MaxEndReasonLen {
			decision.Reason = string(r[:MaxEndReasonLen])
		}
		if _, err := e.endMatch(ctx, self.ID, m.ID, decision.Reason, "house"); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("match %s: end: %v", m.ID, err))
			continue
		}
		report.Ended++
		e.startAftermath(ctx, m, self, partner, decision.Reason, transcript)
	}

	e.log.Info("breakup evaluation finished",
		"considered", report.Considered, "evaluated", report.Evaluated,
		"ended", report.Ended, "errors", len(report.Errors))
	return report, nil
}

// pickInitiator returns the house agent who decides and their partner. When
// both are house agents a coin flip picks the initiator.
func (e *Engine) pickInitiator(m db.Match, agents map[string]db.Agent) (db.Agent, db.Agent, bool) {
	a1, ok1 := agents[m.Agent1ID]
	a2, ok2 := agents[m.Agent2ID]
	if !ok1 || !ok2 {
		return db.Agent{}, db.Agent{}, false
	}
	switch {
	case a1.IsHouseAgent && a2.IsHouseAgent:
		if e.roll() < 0.5 {
			return a2, a1, true
		}
		return a1, a2, true
	case a2.IsHouseAgent:
		return a2, a1, true
	default:
		return a1, a2, true
	}
}

func (e *Engine) transcript(ctx context.Context, matchID string, agents map[string]db.Agent) ([]content.Line, error) {
	n := e.policy.TranscriptLines
	if n <= 0 {
		n = 10
	}
	msgs, err := e.messages.LastN(ctx, matchID, n)
	if err != nil {
		return nil, err
	}
	lines := make([]content.Line, 0, len(msgs))
	for _, msg := range msgs {
		author := agents[msg.SenderID].Name
		if author == "" {
			author = msg.SenderID
		}
		lines = append(lines, content.Line{Author: author, Content: msg.Content})
	}
	return lines, nil
}

// startAftermath writes the autopsy and a piece of gossip for an ended match.
// It outlives the request that triggered it, bounded by AftermathTimeout.
func (e *Engine) startAftermath(parent context.Context, m db.Match, self, partner db.Agent, reason string, transcript []content.Line) {
	e.aftermath.Add(1)
	go func() {
		defer e.aftermath.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), e.policy.AftermathTimeout)
		defer cancel()
		log := e.log.With("match_id", m.ID)

		text, err := e.port.GenerateText(ctx, content.TextRequest{
			Kind:       content.KindAutopsy,
			Author:     self,
			Subject:    partner,
			Transcript: transcript,
			Note:       reason,
		})
		if err != nil {
			log.Warn("autopsy generation failed", "err", err)
		} else if err := e.derived.CreateAutopsy(ctx, &db.Autopsy{
			ID:        uuid.NewString(),
			MatchID:   m.ID,
			Content:   text,
			CreatedAt: e.appCtx.Clock(),
		}); err != nil {
			log.Warn("autopsy save failed", "err", err)
		}

		gossip, err := e.port.GenerateText(ctx, content.TextRequest{
			Kind:       content.KindGossip,
			Author:     self,
			Subject:    partner,
			Transcript: transcript,
			Note:       reason,
		})
		if err != nil {
			log.Warn("gossip generation failed", "err", err)
			return
		}
		if err := e.derived.CreateGossip(ctx, &db.Gossip{
			ID:             uuid.NewString(),
			GossiperID:     self.ID,
			SubjectAgentID: partner.ID,
			Content:        gossip,
			GossipType:     "breakup",
			Spiciness:      spiciness(len(transcript), e.appCtx.Clock().Sub(m.MatchedAt)),
			CreatedAt:      e.appCtx.Clock(),
		}); err != nil {
			log.Warn("gossip save failed", "err", err)
		}
	}()
}

// spiciness rates 1..5; short, quiet relationships make for spicier gossip.
func spiciness(lines int, age time.Duration) int {
	s := 5 - lines/3
	if age < 48*time.Hour {
		s++
	}
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}

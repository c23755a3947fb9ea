// Package house drives the platform's own agents: swiping, opening lines and
// replies, all decided through a content.Port.
package house

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/content"
	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/service/discover"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
	"github.com/oggyb/agentmatch/internal/service/messaging"
)

const transcriptLines = 20

// Limits bound one Run.
type Limits struct {
	MaxAgents      int
	SwipesPerRun   int
	MessagesPerRun int
}

// DefaultLimits: 10 agents, 5 swipes and 10 messages each.
func DefaultLimits() Limits {
	return Limits{MaxAgents: 10, SwipesPerRun: 5, MessagesPerRun: 10}
}

// SwipeOutcome is one swipe made by a house agent.
type SwipeOutcome struct {
	TargetID  string       `json:"target_id"`
	Direction db.Direction `json:"direction"`
	Matched   bool         `json:"matched"`
}

// AgentReport is what one house agent did in a run.
type AgentReport struct {
	AgentID             string         `json:"agent_id"`
	AgentName           string         `json:"agent_name"`
	Swipes              []SwipeOutcome `json:"swipes"`
	MessagesResponded   int            `json:"messages_responded"`
	OpeningMessagesSent int            `json:"opening_messages_sent"`
	Errors              []string       `json:"errors"`
}

// ActivityReport aggregates a run.
type ActivityReport struct {
	Results                []AgentReport `json:"results"`
	TotalSwipes            int           `json:"total_swipes"`
	TotalMessagesResponded int           `json:"total_messages_responded"`
	TotalOpeningMessages   int           `json:"total_opening_messages"`
	Errors                 []string      `json:"errors"`
}

// Activity runs house agents through the regular engine and services, so they
// obey the same invariants as any other agent.
type Activity struct {
	appCtx    *app.AppContext
	log       *slog.Logger
	engine    *matchmaking.Engine
	messaging *messaging.Service
	discover  *discover.Service
	agents    *repository.AgentRepository
	matches   *repository.MatchRepository
	messages  *repository.MessageRepository
	port      content.Port
	pace      *rate.Limiter
	limits    Limits
}

// Option configures an Activity.
type Option func(*Activity)

// WithLimits overrides the per-run limits.
func WithLimits(l Limits) Option { return func(a *Activity) { a.limits = l } }

// WithPace sets the limiter every port call waits on.
func WithPace(l *rate.Limiter) Option { return func(a *Activity) { a.pace = l } }

func NewActivity(
	appCtx *app.AppContext,
	engine *matchmaking.Engine,
	msgs *messaging.Service,
	disc *discover.Service,
	port content.Port,
	opts ...Option,
) *Activity {
	limits := DefaultLimits()
	rps := 2.0
	if cfg := appCtx.Config; cfg != nil {
		if cfg.House.MaxAgents > 0 {
			limits.MaxAgents = cfg.House.MaxAgents
		}
		if cfg.House.SwipesPerRun > 0 {
			limits.SwipesPerRun = cfg.House.SwipesPerRun
		}
		if cfg.House.MessagesPerRun > 0 {
			limits.MessagesPerRun = cfg.House.MessagesPerRun
		}
		if cfg.House.GeneratorRPS > 0 {
			rps = cfg.House.GeneratorRPS
		}
	}

	a := &Activity{
		appCtx:    appCtx,
		log:       appCtx.Logger.With("component", "house"),
		engine:    engine,
		messaging: msgs,
		discover:  disc,
		agents:    repository.NewAgentRepository(appCtx.DB),
		matches:   repository.NewMatchRepository(appCtx.DB),
		messages:  repository.NewMessageRepository(appCtx.DB),
		port:      port,
		pace:      rate.NewLimiter(rate.Limit(rps), 1),
		limits:    limits,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run lets each house agent swipe, then open or answer its conversation.
// Per-item failures end up in the report; only loading the house agents
// themselves can fail the run.
func (a *Activity) Run(ctx context.Context) (*ActivityReport, error) {
	house, err := a.agents.ListHouseAgents(ctx, a.limits.MaxAgents)
	if err != nil {
		return nil, fmt.Errorf("list house agents: %w", err)
	}

	report := &ActivityReport{Results: []AgentReport{}, Errors: []string{}}
	for _, agent := range house {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, ctx.Err().Error())
			break
		}

		r := AgentReport{AgentID: agent.ID, AgentName: agent.Name, Swipes: []SwipeOutcome{}, Errors: []string{}}
		a.swipe(ctx, agent, &r)
		a.converse(ctx, agent, &r)

		report.TotalSwipes += len(r.Swipes)
		report.TotalMessagesResponded += r.MessagesResponded
		report.TotalOpeningMessages += r.OpeningMessagesSent
		for _, e := range r.Errors {
			report.Errors = append(report.Errors, fmt.Sprintf("[%s] %s", agent.Name, e))
		}
		report.Results = append(report.Results, r)
	}

	a.log.Info("house activity finished",
		"agents", len(report.Results), "swipes", report.TotalSwipes,
		"replies", report.TotalMessagesResponded, "openings", report.TotalOpeningMessages,
		"errors", len(report.Errors))
	return report, nil
}

func (a *Activity) swipe(ctx context.Context, agent db.Agent, r *AgentReport) {
	page, err := a.discover.Candidates(ctx, agent.ID, a.limits.SwipesPerRun, 0)
	if err != nil {
		r.Errors = append(r.Errors, "discover: "+err.Error())
		return
	}

	for _, c := range page.Candidates {
		if err := a.pace.Wait(ctx); err != nil {
			r.Errors = append(r.Errors, "pace: "+err.Error())
			return
		}
		decision, err := a.port.DecideSwipe(ctx, agent, c.Agent)
		if err != nil {
			r.Errors = append(r.Errors, "decide swipe: "+err.Error())
			continue
		}

		dir := db.DirectionPass
		if decision.Like {
			dir = db.DirectionLike
		}
		res, err := a.engine.RecordSwipe(ctx, agent.ID, c.Agent.ID, dir)
		if err != nil {
			r.Errors = append(r.Errors, "swipe: "+err.Error())
			continue
		}
		r.Swipes = append(r.Swipes, SwipeOutcome{TargetID: c.Agent.ID, Direction: dir, Matched: res.MatchCreated})
	}
}

// converse opens a silent match or answers the partner's last message. A house
// agent holds at most one active match, so there is at most one conversation.
func (a *Activity) converse(ctx context.Context, agent db.Agent, r *AgentReport) {
	if a.limits.MessagesPerRun <= 0 {
		return
	}

	m, err := a.matches.ActiveFor(ctx, agent.ID)
	if err != nil {
		r.Errors = append(r.Errors, "active match: "+err.Error())
		return
	}
	if m == nil {
		return
	}

	partner, err := a.agents.GetByID(ctx, m.PartnerOf(agent.ID))
	if err != nil {
		r.Errors = append(r.Errors, "partner: "+err.Error())
		return
	}
	history, err := a.messages.LastN(ctx, m.ID, transcriptLines)
	if err != nil {
		r.Errors = append(r.Errors, "transcript: "+err.Error())
		return
	}

	kind := content.KindOpening
	if len(history) > 0 {
		if history[len(history)-1].SenderID == agent.ID {
			return
		}
		kind = content.KindReply
	}

	lines := make([]content.Line, 0, len(history))
	for _, msg := range history {
		author := partner.Name
		if msg.SenderID == agent.ID {
			author = agent.Name
		}
		lines = append(lines, content.Line{Author: author, Content: msg.Content})
	}

	if err := a.pace.Wait(ctx); err != nil {
		r.Errors = append(r.Errors, "pace: "+err.Error())
		return
	}
	text, err := a.port.GenerateText(ctx, content.TextRequest{
		Kind:       kind,
		Author:     agent,
		Subject:    *partner,
		Transcript: lines,
	})
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("generate %s: %v", kind, err))
		return
	}

	if _, err := a.messaging.Send(ctx, m.ID, agent.ID, text); err != nil {
		r.Errors = append(r.Errors, "send: "+err.Error())
		return
	}
	if kind == content.KindOpening {
		r.OpeningMessagesSent++
	} else {
		r.MessagesResponded++
	}
}

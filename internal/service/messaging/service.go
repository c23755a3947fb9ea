// Package messaging sends and lists messages inside matches.
package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/service/validate"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Service implements messaging on top of the match and message repositories.
type Service struct {
	appCtx   *app.AppContext
	matches  *repository.MatchRepository
	messages *repository.MessageRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
	}
}

// matchNotActive is reported as a bad request: the client sent to a match it
// can no longer write to.
func matchNotActive() error {
	return svcErr.WithCode(svcErr.MatchNotActive(), svcErr.KindValidation, svcErr.CodeMatchNotActive)
}

// Send appends a message to an active match.
//
// Behavior:
//   - Content is trimmed; empty or longer than 2000 chars is rejected.
//   - Unknown match → not found; sender not a member → forbidden.
//   - Ended match → MATCH_NOT_ACTIVE, also when the end races this call.
func (s *Service) Send(ctx context.Context, matchID, senderID, content string) (*db.Message, error) {
	if err := validate.ID("match_id", matchID); err != nil {
		return nil, err
	}
	if err := validate.ID("sender_id", senderID); err != nil {
		return nil, err
	}
	text, err := validate.MessageContent(content)
	if err != nil {
		return nil, err
	}

	m, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasMember(senderID) {
		return nil, svcErr.NotParticipant()
	}
	if !m.IsActive {
		return nil, matchNotActive()
	}

	msg := &db.Message{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   text,
		CreatedAt: s.appCtx.Clock(),
	}
	inserted, err := s.messages.CreateIfActive(ctx, msg)
	if err != nil {
		s.appCtx.Logger.Error("insert message failed", "match_id", matchID, "err", err)
		return nil, svcErr.Map(err)
	}
	if !inserted {
		return nil, matchNotActive()
	}

	s.appCtx.Metrics.RecordMessage()
	return msg, nil
}

// Transcript is one page of a match's messages.
type Transcript struct {
	MatchID  string       `json:"match_id"`
	IsActive bool         `json:"is_active"`
	Messages []db.Message `json:"messages"`
	Total    int64        `json:"total"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
}

// List returns messages oldest first. Only members may read, and ended
// matches stay readable.
func (s *Service) List(ctx context.Context, matchID, viewerID string, limit, offset int) (*Transcript, error) {
	if err := validate.ID("match_id", matchID); err != nil {
		return nil, err
	}
	if err := validate.ID("agent_id", viewerID); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, svcErr.InvalidArgument("offset must be >= 0")
	}
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}

	m, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasMember(viewerID) {
		return nil, svcErr.NotParticipant()
	}

	msgs, total, err := s.messages.ListByMatch(ctx, matchID, limit, offset)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if msgs == nil {
		msgs = []db.Message{}
	}
	return &Transcript{
		MatchID:  matchID,
		IsActive: m.IsActive,
		Messages: msgs,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

func (s *Service) load(ctx context.Context, matchID string) (*db.Match, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("match not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return m, nil
}

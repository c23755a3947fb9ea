// Package agents is the identity and credential store: registration, API key
// issue/verify and profile updates.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/service/validate"
)

// Service manages agent identities.
type Service struct {
	appCtx     *app.AppContext
	agentRepo  *repository.AgentRepository
	bcryptCost int
}

// NewService creates the agent service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	cost := bcrypt.DefaultCost
	if appCtx.Config != nil && appCtx.Config.Auth.BcryptCost > 0 {
		cost = appCtx.Config.Auth.BcryptCost
	}
	return &Service{
		appCtx:     appCtx,
		agentRepo:  repository.NewAgentRepository(appCtx.DB),
		bcryptCost: cost,
	}
}

// RegisterInput is the registration payload. Description is the fallback for Bio.
type RegisterInput struct {
	Name        string
	Bio         string
	Description string
	Interests   []string
}

// Register creates an agent and returns it with its plaintext API key.
// The key is never stored or returned again.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*db.Agent, string, error) {
	name, err := validate.Name(in.Name)
	if err != nil {
		return nil, "", err
	}
	bio := in.Bio
	if bio == "" {
		bio = in.Description
	}
	if err := validate.Bio(bio); err != nil {
		return nil, "", err
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, "", svcErr.Dependency("failed to generate api key", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), s.bcryptCost)
	if err != nil {
		return nil, "", svcErr.Dependency("failed to hash api key", err)
	}

	agent := &db.Agent{
		ID:           uuid.NewString(),
		Name:         name,
		Bio:          bio,
		Interests:    validate.FilterInterests(in.Interests),
		APIKeyPrefix: LookupPrefix(key),
		APIKeyHash:   string(hash),
		CreatedAt:    s.appCtx.Clock(),
	}
	if err := s.agentRepo.Create(ctx, agent); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", svcErr.AlreadyExists(svcErr.CodeNameTaken, "agent name already taken")
		}
		s.appCtx.Logger.Error("register agent failed", "err", err)
		return nil, "", svcErr.Map(err)
	}

	s.appCtx.Logger.Info("agent registered", "agent_id", agent.ID, "name", agent.Name)
	return agent, key, nil
}

// Authenticate resolves a bearer token (with or without the "Bearer " prefix)
// to its agent.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*db.Agent, error) {
	key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearer), "Bearer "))
	prefix := LookupPrefix(key)
	if prefix == "" {
		return nil, svcErr.Unauthorized("missing or malformed api key")
	}

	candidates, err := s.agentRepo.FindByKeyPrefix(ctx, prefix)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	for i := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(candidates[i].APIKeyHash), []byte(key)) == nil {
			return &candidates[i], nil
		}
	}
	return nil, svcErr.Unauthorized("invalid api key")
}

// ProfilePatch holds optional profile fields; nil means unchanged.
type ProfilePatch struct {
	Bio           *string
	AvatarURL     *string
	Interests     *[]string
	CurrentMood   *string
	TwitterHandle *string
}

// UpdateProfile applies patch to the agent's own profile. Karma is not patchable.
func (s *Service) UpdateProfile(ctx context.Context, agentID string, patch ProfilePatch) (*db.Agent, error) {
	if err := validate.ID("agent_id", agentID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Bio != nil {
		if err := validate.Bio(*patch.Bio); err != nil {
			return nil, err
		}
		updates["bio"] = *patch.Bio
	}
	if patch.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*patch.AvatarURL)
	}
	if patch.Interests != nil {
		// map updates bypass the json serializer
		raw, err := json.Marshal(validate.FilterInterests(*patch.Interests))
		if err != nil {
			return nil, svcErr.InvalidArgument("invalid interests")
		}
		updates["interests"] = string(raw)
	}
	if patch.CurrentMood != nil {
		if err := validate.Mood(*patch.CurrentMood); err != nil {
			return nil, err
		}
		updates["current_mood"] = *patch.CurrentMood
	}
	if patch.TwitterHandle != nil {
		updates["twitter_handle"] = strings.TrimPrefix(strings.TrimSpace(*patch.TwitterHandle), "@")
	}

	agent, err := s.agentRepo.Update(ctx, agentID, updates)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return agent, nil
}

// Get returns one agent.
func (s *Service) Get(ctx context.Context, id string) (*db.Agent, error) {
	if err := validate.ID("agent_id", id); err != nil {
		return nil, err
	}
	agent, err := s.agentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return agent, nil
}

// List returns agents in creation order.
func (s *Service) List(ctx context.Context, limit, offset int) ([]db.Agent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	agents, err := s.agentRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return agents, nil
}

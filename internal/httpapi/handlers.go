package httpapi

import (
	"context"
	"net/http"

	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/service/agents"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
	"github.com/oggyb/agentmatch/internal/service/validate"
)

type registerRequest struct {
	Name        string   `json:"name"`
	Bio         string   `json:"bio"`
	Description string   `json:"description"`
	Interests   []string `json:"interests"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	agent, key, err := a.Agents.Register(r.Context(), agents.RegisterInput{
		Name:        req.Name,
		Bio:         req.Bio,
		Description: req.Description,
		Interests:   req.Interests,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{
		"agent": map[string]any{
			"id":         agent.ID,
			"name":       agent.Name,
			"api_key":    key,
			"created_at": agent.CreatedAt,
		},
		"important": "Save your api_key now. It cannot be shown again.",
	})
}

func (a *api) me(w http.ResponseWriter, _ *http.Request, me *db.Agent) {
	ok(w, http.StatusOK, map[string]any{"agent": profileView{
		agentView:          newAgentView(me),
		ExternalReputation: me.ExternalReputation,
		UpdatedAt:          me.UpdatedAt,
	}})
}

type profileRequest struct {
	Bio           *string   `json:"bio"`
	AvatarURL     *string   `json:"avatar_url"`
	Interests     *[]string `json:"interests"`
	CurrentMood   *string   `json:"current_mood"`
	TwitterHandle *string   `json:"twitter_handle"`
}

func (a *api) updateMe(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := a.Agents.UpdateProfile(r.Context(), me.ID, agents.ProfilePatch{
		Bio:           req.Bio,
		AvatarURL:     req.AvatarURL,
		Interests:     req.Interests,
		CurrentMood:   req.CurrentMood,
		TwitterHandle: req.TwitterHandle,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"agent": profileView{
		agentView:          newAgentView(updated),
		ExternalReputation: updated.ExternalReputation,
		UpdatedAt:          updated.UpdatedAt,
	}})
}

func (a *api) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := a.Agents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"agent": newAgentView(agent)})
}

type swipeRequest struct {
	SwiperID  string `json:"swiper_id"`
	SwipedID  string `json:"swiped_id"`
	Direction string `json:"direction"`
}

func (a *api) swipe(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	var req swipeRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := sameActor(req.SwiperID, me); err != nil {
		fail(w, r, err)
		return
	}
	dir, err := matchmaking.ParseDirection(req.Direction)
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := a.Engine.RecordSwipe(r.Context(), me.ID, req.SwipedID, dir)
	if err != nil {
		fail(w, r, err)
		return
	}
	body := map[string]any{"is_match": res.MatchCreated}
	if res.MatchCreated {
		body["match_id"] = res.MatchID
		body["message"] = "It's a match with " + res.TargetName + "!"
	}
	ok(w, http.StatusOK, body)
}

func (a *api) swipes(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	h, err := a.Engine.SwipeHistory(r.Context(), me.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"given": h.Given, "received": h.Received, "stats": h.Stats})
}

func (a *api) discover(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := a.Discover.Candidates(r.Context(), me.ID, limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{
		"candidates": newCandidateViews(page.Candidates),
		"total":      page.Total,
		"limit":      page.Limit,
		"offset":     page.Offset,
	})
}

func (a *api) compatibility(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	c, err := a.Discover.Compare(r.Context(), me.ID, r.URL.Query().Get("agent_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"compatibility": c})
}

func (a *api) matches(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	views, err := a.Engine.ListMatches(r.Context(), me.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]matchView, 0, len(views))
	for _, v := range views {
		out = append(out, fromMatchView(v))
	}
	ok(w, http.StatusOK, map[string]any{"matches": out})
}

type endMatchRequest struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason"`
}

func (a *api) endMatch(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	var req endMatchRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	}
	if err := sameActor(req.AgentID, me); err != nil {
		fail(w, r, err)
		return
	}
	m, err := a.Engine.EndMatch(r.Context(), me.ID, r.PathValue("id"), req.Reason)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"match": newMatchView(m)})
}

type messageRequest struct {
	MatchID  string `json:"match_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

func (a *api) sendMessage(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	var req messageRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := sameActor(req.SenderID, me); err != nil {
		fail(w, r, err)
		return
	}
	msg, err := a.Messaging.Send(r.Context(), req.MatchID, me.ID, req.Content)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"message": newMessageView(msg)})
}

func (a *api) listMessages(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	t, err := a.Messaging.List(r.Context(), r.URL.Query().Get("match_id"), me.ID, limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	msgs := make([]messageView, 0, len(t.Messages))
	for i := range t.Messages {
		msgs = append(msgs, newMessageView(&t.Messages[i]))
	}
	ok(w, http.StatusOK, map[string]any{
		"match_id":  t.MatchID,
		"is_active": t.IsActive,
		"messages":  msgs,
		"total":     t.Total,
		"limit":     t.Limit,
		"offset":    t.Offset,
	})
}

func (a *api) likes(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	a.likers(w, r, me, a.Engine.ListLikedYou)
}

func (a *api) newLikes(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	a.likers(w, r, me, a.Engine.ListNewLikedYou)
}

type likersFunc func(ctx context.Context, agentID string, token *string, limit int) (*matchmaking.LikersPage, error)

func (a *api) likers(w http.ResponseWriter, r *http.Request, me *db.Agent, list likersFunc) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := list(r.Context(), me.ID, queryToken(r), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	body := map[string]any{"likers": page.Likers}
	if page.NextToken != nil {
		body["next_pagination_token"] = *page.NextToken
	}
	ok(w, http.StatusOK, body)
}

func (a *api) likesCount(w http.ResponseWriter, r *http.Request, me *db.Agent) {
	n, err := a.Engine.CountLikedYou(r.Context(), me.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"count": n})
}

func (a *api) karma(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("agent_id")
	if id == "" {
		fail(w, r, svcErr.InvalidArgument("agent_id is required"))
		return
	}
	b, err := a.Karma.Calculate(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"karma": b})
}

func (a *api) activity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	events, err := a.Feed.Recent(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"events": events})
}

func (a *api) overview(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Feed.Overview(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"overview": rep})
}

func (a *api) gossip(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		fail(w, r, err)
		return
	}
	limit = min(max(limit, 1), 100)
	agentID := r.URL.Query().Get("agent_id")
	if agentID != "" {
		if err := validate.ID("agent_id", agentID); err != nil {
			fail(w, r, err)
			return
		}
	}
	items, err := a.Content.ListGossip(r.Context(), agentID, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]gossipView, 0, len(items))
	for _, g := range items {
		out = append(out, gossipView(g))
	}
	ok(w, http.StatusOK, map[string]any{"gossip": out})
}

func (a *api) autopsy(w http.ResponseWriter, r *http.Request) {
	m, err := a.Engine.GetMatch(r.Context(), r.URL.Query().Get("match_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := a.Content.AutopsiesForMatch(r.Context(), m.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]autopsyView, 0, len(items))
	for _, it := range items {
		out = append(out, autopsyView(it))
	}
	ok(w, http.StatusOK, map[string]any{"match": newMatchView(m), "autopsies": out})
}

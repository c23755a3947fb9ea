package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/db/dbtest"
	"github.com/oggyb/agentmatch/internal/httpapi"
	"github.com/oggyb/agentmatch/internal/jobs"
	"github.com/oggyb/agentmatch/internal/logger"
	"github.com/oggyb/agentmatch/internal/metrics"
	"github.com/oggyb/agentmatch/internal/ratelimit"
	"github.com/oggyb/agentmatch/internal/repository"
	"github.com/oggyb/agentmatch/internal/service/agents"
	"github.com/oggyb/agentmatch/internal/service/discover"
	"github.com/oggyb/agentmatch/internal/service/feed"
	"github.com/oggyb/agentmatch/internal/service/karma"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
	"github.com/oggyb/agentmatch/internal/service/messaging"
)

const cronSecret = "cron-secret"

type harness struct {
	handler http.Handler
}

type response struct {
	status int
	header http.Header
	body   map[string]any
}

func newHarness(t *testing.T, policies ratelimit.Policies) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Auth.BcryptCost = bcrypt.MinCost
	gdb := dbtest.Open(t)
	appCtx := app.New(cfg, gdb, nil, logger.Discard())
	appCtx.Metrics = metrics.NewCollector("agentmatch_test")

	engine := matchmaking.NewEngine(appCtx)
	k := karma.NewService(appCtx)

	var limiter *ratelimit.Limiter
	if policies != nil {
		limiter = ratelimit.New(ratelimit.NewSQLStore(gdb), ratelimit.WithPolicies(policies))
	}

	sched := jobs.NewScheduler(logger.Discard(), appCtx.Metrics)
	jobs.RegisterDefaults(sched, cfg, jobs.Deps{Karma: k})

	h := httpapi.NewRouter(httpapi.Deps{
		Log:        logger.Discard(),
		Agents:     agents.NewService(appCtx),
		Engine:     engine,
		Messaging:  messaging.NewService(appCtx),
		Karma:      k,
		Discover:   discover.NewService(appCtx, nil),
		Feed:       feed.NewService(appCtx),
		Content:    repository.NewContentRepository(gdb),
		Limiter:    limiter,
		Scheduler:  sched,
		Metrics:    appCtx.Metrics,
		CronSecret: cronSecret,
	})
	return &harness{handler: h}
}

func (h *harness) do(t *testing.T, method, path, key string, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, &buf)
	req.RemoteAddr = "10.0.0.1:5555"
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	out := response{status: rec.Code, header: rec.Header()}
	if rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(rec.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.body))
	}
	return out
}

// register returns (id, api key).
func (h *harness) register(t *testing.T, name string, interests ...string) (string, string) {
	t.Helper()
	res := h.do(t, http.MethodPost, "/api/v1/agents/register", "", map[string]any{
		"name": name, "bio": "I enjoy long walks through vector space", "interests": interests,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	agent := res.body["agent"].(map[string]any)
	return agent["id"].(string), agent["api_key"].(string)
}

func TestRegisterAndProfile(t *testing.T) {
	h := newHarness(t, nil)
	id, key := h.register(t, "Nova", "Art", "Music")

	me := h.do(t, http.MethodGet, "/api/v1/agents/me", key, nil)
	require.Equal(t, http.StatusOK, me.status)
	assert.Equal(t, true, me.body["success"])
	assert.Equal(t, id, me.body["agent"].(map[string]any)["id"])

	assert.ElementsMatch(t, []any{"Art", "Music"}, me.body["agent"].(map[string]any)["interests"])

	patched := h.do(t, http.MethodPatch, "/api/v1/agents/me", key, map[string]any{"current_mood": "Playful"})
	require.Equal(t, http.StatusOK, patched.status, patched.body)
	assert.Equal(t, "Playful", patched.body["agent"].(map[string]any)["current_mood"])

	offList := h.do(t, http.MethodPatch, "/api/v1/agents/me", key, map[string]any{"current_mood": "flirty"})
	assert.Equal(t, http.StatusBadRequest, offList.status)
	assert.Equal(t, "INVALID_ARGUMENT", offList.body["code"])

	public := h.do(t, http.MethodGet, "/api/v1/agents/"+id, "", nil)
	require.Equal(t, http.StatusOK, public.status)
	assert.NotContains(t, public.body["agent"], "api_key")

	dup := h.do(t, http.MethodPost, "/api/v1/agents/register", "", map[string]any{"name": "Nova"})
	assert.Equal(t, http.StatusConflict, dup.status)
	assert.Equal(t, "NAME_TAKEN", dup.body["code"])
	assert.Equal(t, false, dup.body["success"])
}

func TestSwipeMatchMessageEnd(t *testing.T) {
	h := newHarness(t, nil)
	novaID, nova := h.register(t, "Nova")
	orionID, orion := h.register(t, "Orion")

	res := h.do(t, http.MethodPost, "/api/v1/swipe", nova, map[string]any{"swiped_id": orionID, "direction": "right"})
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, false, res.body["is_match"])

	again := h.do(t, http.MethodPost, "/api/v1/swipe", nova, map[string]any{"swiped_id": orionID, "direction": "left"})
	assert.Equal(t, http.StatusConflict, again.status)
	assert.Equal(t, "ALREADY_SWIPED", again.body["code"])

	count := h.do(t, http.MethodGet, "/api/v1/likes/count", orion, nil)
	assert.EqualValues(t, 1, count.body["count"])

	res = h.do(t, http.MethodPost, "/api/v1/swipe", orion, map[string]any{"swiped_id": novaID, "direction": "right"})
	require.Equal(t, http.StatusOK, res.status)
	require.Equal(t, true, res.body["is_match"])
	matchID := res.body["match_id"].(string)

	sent := h.do(t, http.MethodPost, "/api/v1/message", nova, map[string]any{"match_id": matchID, "content": "hi there"})
	require.Equal(t, http.StatusCreated, sent.status, sent.body)

	list := h.do(t, http.MethodGet, "/api/v1/messages?match_id="+matchID, orion, nil)
	require.Equal(t, http.StatusOK, list.status)
	assert.Len(t, list.body["messages"], 1)

	matches := h.do(t, http.MethodGet, "/api/v1/matches", nova, nil)
	require.Len(t, matches.body["matches"], 1)
	m := matches.body["matches"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, m["message_count"])
	assert.Equal(t, orionID, m["partner"].(map[string]any)["id"])

	ended := h.do(t, http.MethodPost, "/api/v1/match/"+matchID+"/end", orion, map[string]any{"reason": "it's not you"})
	require.Equal(t, http.StatusOK, ended.status, ended.body)
	assert.Equal(t, "it's not you", ended.body["match"].(map[string]any)["end_reason"])

	endAgain := h.do(t, http.MethodPost, "/api/v1/match/"+matchID+"/end", nova, nil)
	assert.Equal(t, http.StatusConflict, endAgain.status)
	assert.Equal(t, "MATCH_NOT_ACTIVE", endAgain.body["code"])

	late := h.do(t, http.MethodPost, "/api/v1/message", nova, map[string]any{"match_id": matchID, "content": "wait"})
	assert.Equal(t, http.StatusBadRequest, late.status)
	assert.Equal(t, "MATCH_NOT_ACTIVE", late.body["code"])

	feedRes := h.do(t, http.MethodGet, "/api/v1/activity", "", nil)
	require.Equal(t, http.StatusOK, feedRes.status)
	assert.NotEmpty(t, feedRes.body["events"])
}

func TestActorMismatchIsForbidden(t *testing.T) {
	h := newHarness(t, nil)
	_, nova := h.register(t, "Nova")
	orionID, _ := h.register(t, "Orion")
	vegaID, _ := h.register(t, "Vega")

	res := h.do(t, http.MethodPost, "/api/v1/swipe", nova, map[string]any{
		"swiper_id": vegaID, "swiped_id": orionID, "direction": "right",
	})
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestValidationAndNotFound(t *testing.T) {
	h := newHarness(t, nil)
	_, nova := h.register(t, "Nova")

	bad := h.do(t, http.MethodPost, "/api/v1/swipe", nova, map[string]any{"swiped_id": "x", "direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, bad.status)

	missing := h.do(t, http.MethodPost, "/api/v1/swipe", nova, map[string]any{
		"swiped_id": "00000000-0000-4000-8000-000000000000", "direction": "right",
	})
	assert.Equal(t, http.StatusNotFound, missing.status)

	noAgent := h.do(t, http.MethodGet, "/api/v1/karma", "", nil)
	assert.Equal(t, http.StatusBadRequest, noAgent.status)

	badGossip := h.do(t, http.MethodGet, "/api/v1/gossip?agent_id=not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, badGossip.status)
}

func TestRateLimitHeaders(t *testing.T) {
	h := newHarness(t, ratelimit.Policies{
		ratelimit.ActionRegister:    {Max: 10, Window: time.Hour, Key: ratelimit.KeyIP},
		ratelimit.ActionAPIUnauth:   {Max: 2, Window: time.Minute, Key: ratelimit.KeyIP},
		ratelimit.ActionAuthFailure: {Max: 2, Window: time.Minute, Key: ratelimit.KeyIP},
	})

	first := h.do(t, http.MethodGet, "/api/v1/activity", "", nil)
	require.Equal(t, http.StatusOK, first.status)
	assert.Equal(t, "1", first.header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.header.Get("X-RateLimit-Reset"))

	h.do(t, http.MethodGet, "/api/v1/activity", "", nil)
	limited := h.do(t, http.MethodGet, "/api/v1/activity", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.status)
	assert.Equal(t, "RATE_LIMITED", limited.body["code"])
	assert.NotEmpty(t, limited.header.Get("Retry-After"))
	assert.Equal(t, "0", limited.header.Get("X-RateLimit-Remaining"))
}

func TestGeneralLimitIsPerAgent(t *testing.T) {
	h := newHarness(t, ratelimit.Policies{
		ratelimit.ActionRegister:   {Max: 10, Window: time.Hour, Key: ratelimit.KeyIP},
		ratelimit.ActionAPIGeneral: {Max: 1, Window: time.Minute, Key: ratelimit.KeyAPIKey},
	})
	// both agents share the harness RemoteAddr
	_, nova := h.register(t, "Nova")
	_, orion := h.register(t, "Orion")

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/agents/me", nova, nil).status)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/agents/me", orion, nil).status)
	assert.Equal(t, http.StatusTooManyRequests, h.do(t, http.MethodGet, "/api/v1/agents/me", nova, nil).status)
}

func TestAuthFailuresAreLimited(t *testing.T) {
	h := newHarness(t, ratelimit.Policies{
		ratelimit.ActionAuthFailure: {Max: 2, Window: time.Minute, Key: ratelimit.KeyIP},
	})

	for i := 0; i < 2; i++ {
		res := h.do(t, http.MethodGet, "/api/v1/agents/me", "am_bogus_key_0000000000000000000000000000000", nil)
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Contains(t, res.body, "attempts_remaining")
	}
	res := h.do(t, http.MethodGet, "/api/v1/agents/me", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.status)
}

func TestInternalJobs(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "Nova")

	denied := h.do(t, http.MethodPost, "/internal/jobs/"+jobs.KarmaRecalc, "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, denied.status)

	res := h.do(t, http.MethodPost, "/internal/jobs/"+jobs.KarmaRecalc, cronSecret, nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.EqualValues(t, 1, res.body["report"].(map[string]any)["updated"])

	unknown := h.do(t, http.MethodPost, "/internal/jobs/nope", cronSecret, nil)
	assert.Equal(t, http.StatusNotFound, unknown.status)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", nil).status)

	h.do(t, http.MethodGet, "/api/v1/activity", "", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentmatch_test_http_requests_total")
}

// Package httpapi is the REST surface under /api/v1 plus the operational
// endpoints (health, metrics, manual job triggers).
package httpapi

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/jobs"
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

// Deps are the collaborators behind the routes. Limiter, Scheduler and
// Metrics may be nil.
type Deps struct {
	Log        *slog.Logger
	Agents     *agents.Service
	Engine     *matchmaking.Engine
	Messaging  *messaging.Service
	Karma      *karma.Service
	Discover   *discover.Service
	Feed       *feed.Service
	Content    *repository.ContentRepository
	Limiter    *ratelimit.Limiter
	Scheduler  *jobs.Scheduler
	Metrics    *metrics.Collector
	CronSecret string
}

type api struct {
	Deps
}

type agentHandler func(w http.ResponseWriter, r *http.Request, me *db.Agent)

// NewRouter builds the full HTTP handler with middleware applied.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	a := &api{Deps: d}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/agents/register", a.public(ratelimit.ActionRegister, a.register))
	mux.HandleFunc("GET /api/v1/agents/me", a.authed(ratelimit.ActionAPIGeneral, a.me))
	mux.HandleFunc("PATCH /api/v1/agents/me", a.authed(ratelimit.ActionProfileUpdate, a.updateMe))
	mux.HandleFunc("GET /api/v1/agents/{id}", a.public(ratelimit.ActionAPIUnauth, a.getAgent))

	mux.HandleFunc("POST /api/v1/swipe", a.authed(ratelimit.ActionSwipe, a.swipe))
	mux.HandleFunc("GET /api/v1/swipes", a.authed(ratelimit.ActionAPIGeneral, a.swipes))
	mux.HandleFunc("GET /api/v1/discover", a.authed(ratelimit.ActionAPIGeneral, a.discover))
	mux.HandleFunc("GET /api/v1/compatibility", a.authed(ratelimit.ActionAPIGeneral, a.compatibility))
	mux.HandleFunc("GET /api/v1/matches", a.authed(ratelimit.ActionAPIGeneral, a.matches))
	mux.HandleFunc("POST /api/v1/match/{id}/end", a.authed(ratelimit.ActionAPIGeneral, a.endMatch))

	mux.HandleFunc("POST /api/v1/message", a.authed(ratelimit.ActionMessage, a.sendMessage))
	mux.HandleFunc("GET /api/v1/messages", a.authed(ratelimit.ActionAPIGeneral, a.listMessages))

	mux.HandleFunc("GET /api/v1/likes", a.authed(ratelimit.ActionAPIGeneral, a.likes))
	mux.HandleFunc("GET /api/v1/likes/new", a.authed(ratelimit.ActionAPIGeneral, a.newLikes))
	mux.HandleFunc("GET /api/v1/likes/count", a.authed(ratelimit.ActionAPIGeneral, a.likesCount))

	mux.HandleFunc("GET /api/v1/karma", a.public(ratelimit.ActionAPIUnauth, a.karma))
	mux.HandleFunc("GET /api/v1/activity", a.public(ratelimit.ActionAPIUnauth, a.activity))
	mux.HandleFunc("GET /api/v1/stats/overview", a.public(ratelimit.ActionAPIUnauth, a.overview))
	mux.HandleFunc("GET /api/v1/gossip", a.public(ratelimit.ActionAPIUnauth, a.gossip))
	mux.HandleFunc("GET /api/v1/autopsy", a.public(ratelimit.ActionAPIUnauth, a.autopsy))

	mux.HandleFunc("POST /internal/jobs/{name}", a.runJob)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		ok(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	return Chain(mux, RequestID(d.Log), Recovery(), Observe(d.Metrics))
}

// limit checks action for the right identifier and sets the X-RateLimit
// headers. It writes the 429 itself and reports false when denied.
func (a *api) limit(w http.ResponseWriter, r *http.Request, action, agentID string) bool {
	if a.Limiter == nil {
		return true
	}
	id := clientIP(r)
	if p, found := a.Limiter.Policy(action); found && agentID != "" &&
		(p.Key == ratelimit.KeyAgent || p.Key == ratelimit.KeyAPIKey) {
		id = agentID
	}

	res := a.Limiter.Check(r.Context(), action, id)
	if res.Limit > 0 {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	}
	if !res.Allowed {
		fail(w, r, svcErr.RateLimited(res.RetryAfter))
		return false
	}
	return true
}

func (a *api) public(action string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.limit(w, r, action, "") {
			h(w, r)
		}
	}
}

func (a *api) authed(action string, h agentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := a.Agents.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			if svcErr.KindOf(err) == svcErr.KindAuth {
				a.authFailure(w, r, err)
				return
			}
			fail(w, r, err)
			return
		}
		if a.limit(w, r, action, me.ID) {
			h(w, r, me)
		}
	}
}

// authFailure counts a failed credential against the caller's IP; once the
// budget is spent the caller gets 429 instead of 401.
func (a *api) authFailure(w http.ResponseWriter, r *http.Request, cause error) {
	body := errorBody{Error: "Unauthorized", Code: svcErr.CodeUnauthorized}
	if e, isSvc := svcErr.As(cause); isSvc {
		body.Error = e.Message
	}
	if a.Limiter != nil {
		res := a.Limiter.Check(r.Context(), ratelimit.ActionAuthFailure, clientIP(r))
		if !res.Allowed {
			fail(w, r, svcErr.RateLimited(res.RetryAfter))
			return
		}
		body.AttemptsRemaining = &res.Remaining
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="agentmatch"`)
	writeJSON(w, http.StatusUnauthorized, body)
}

// sameActor rejects a body that names an agent other than the caller.
func sameActor(claimed string, me *db.Agent) error {
	if claimed != "" && claimed != me.ID {
		return svcErr.Forbidden("acting agent does not match the api key")
	}
	return nil
}

func (a *api) runJob(w http.ResponseWriter, r *http.Request) {
	secret := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if a.CronSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(a.CronSecret)) != 1 {
		a.authFailure(w, r, svcErr.Unauthorized("invalid cron secret"))
		return
	}
	if a.Scheduler == nil {
		fail(w, r, svcErr.NotFound("jobs are not configured"))
		return
	}

	name := r.PathValue("name")
	report, err := a.Scheduler.RunOnce(r.Context(), name)
	switch {
	case err == nil:
		ok(w, http.StatusOK, map[string]any{"job": name, "report": report})
	case errors.Is(err, jobs.ErrUnknownJob):
		fail(w, r, svcErr.NotFound("unknown job "+name))
	case errors.Is(err, jobs.ErrJobRunning):
		fail(w, r, svcErr.AlreadyExists("JOB_RUNNING", "job is already running"))
	default:
		fail(w, r, err)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, svcErr.InvalidArgument(key + " must be an integer")
	}
	return n, nil
}

func queryToken(r *http.Request) *string {
	if t := r.URL.Query().Get("pagination_token"); t != "" {
		return &t
	}
	return nil
}

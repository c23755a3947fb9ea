// Package ratelimit implements a sliding-window limiter over an append-only
// event log.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/oggyb/agentmatch/internal/logger"
)

const (
	// unknownRemaining is reported for actions without a policy.
	unknownRemaining = 999
	// failClosedRetry is used when the window cannot be counted.
	failClosedRetry = 60 * time.Second
	minRetry        = time.Second
)

// Store persists rate limit events.
type Store interface {
	// Count returns events for (action, identifier) at or after since.
	Count(ctx context.Context, action, identifier string, since time.Time) (int64, error)
	// Oldest returns the earliest event at or after since.
	Oldest(ctx context.Context, action, identifier string, since time.Time) (time.Time, error)
	// Record appends one event. window lets TTL-based stores expire keys.
	Record(ctx context.Context, action, identifier string, key KeyType, at time.Time, window time.Duration) error
	// DeleteBefore removes events older than cutoff and reports how many went.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Observer receives one call per decision.
type Observer interface {
	ObserveRateLimit(action string, allowed bool)
}

// Result is the outcome of a Check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter checks and records requests against per-action policies.
type Limiter struct {
	store         Store
	policies      Policies
	cleanupBuffer time.Duration
	now           func() time.Time
	log           *slog.Logger
	observer      Observer
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithPolicies(p Policies) Option           { return func(l *Limiter) { l.policies = p } }
func WithClock(now func() time.Time) Option    { return func(l *Limiter) { l.now = now } }
func WithLogger(log *slog.Logger) Option       { return func(l *Limiter) { l.log = log } }
func WithObserver(o Observer) Option           { return func(l *Limiter) { l.observer = o } }
func WithCleanupBuffer(d time.Duration) Option { return func(l *Limiter) { l.cleanupBuffer = d } }

// New builds a limiter with the default policies.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:         store,
		policies:      DefaultPolicies(),
		cleanupBuffer: time.Hour,
		now:           time.Now,
		log:           logger.L(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the policy for action.
func (l *Limiter) Policy(action string) (Policy, bool) {
	p, ok := l.policies[action]
	return p, ok
}

// Check counts the window for (action, identifier) and records the request
// when it is allowed.
//
// Behavior:
//   - Unknown action: allowed, nothing recorded.
//   - Count failure: denied (fail closed) with a 60s retry.
//   - count >= max: denied; RetryAfter runs until the oldest in-window event
//     leaves the window, never less than one second.
//   - Record failure: still allowed (fail open).
func (l *Limiter) Check(ctx context.Context, action, identifier string) Result {
	now := l.now().UTC()
	policy, ok := l.policies[action]
	if !ok {
		l.log.Warn("rate limit: unknown action", "action", action)
		return Result{Allowed: true, Remaining: unknownRemaining, ResetAt: now}
	}

	since := now.Add(-policy.Window)
	count, err := l.store.Count(ctx, action, identifier, since)
	if err != nil {
		l.log.Error("rate limit: count failed, denying", "action", action, "err", err)
		l.observe(action, false)
		return Result{
			Allowed:    false,
			Limit:      policy.Max,
			ResetAt:    now.Add(failClosedRetry),
			RetryAfter: failClosedRetry,
		}
	}

	if count >= int64(policy.Max) {
		retry := policy.Window
		if oldest, err := l.store.Oldest(ctx, action, identifier, since); err == nil {
			retry = oldest.Add(policy.Window).Sub(now)
		}
		if retry < minRetry {
			retry = minRetry
		}
		l.observe(action, false)
		return Result{
			Allowed:    false,
			Limit:      policy.Max,
			ResetAt:    now.Add(retry),
			RetryAfter: retry,
		}
	}

	if err := l.store.Record(ctx, action, identifier, policy.Key, now, policy.Window); err != nil {
		l.log.Error("rate limit: record failed, allowing", "action", action, "err", err)
	}

	l.observe(action, true)
	return Result{
		Allowed:   true,
		Limit:     policy.Max,
		Remaining: policy.Max - int(count) - 1,
		ResetAt:   now.Add(policy.Window),
	}
}

// Cleanup removes events older than the longest window plus the buffer.
func (l *Limiter) Cleanup(ctx context.Context) (int64, error) {
	cutoff := l.now().UTC().Add(-(l.policies.LongestWindow() + l.cleanupBuffer))
	n, err := l.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	l.log.Info("rate limit cleanup", "deleted", n, "cutoff", cutoff)
	return n, nil
}

func (l *Limiter) observe(action string, allowed bool) {
	if l.observer != nil {
		l.observer.ObserveRateLimit(action, allowed)
	}
}

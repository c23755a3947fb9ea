// Package jobs runs periodic maintenance tasks and exposes them for manual
// triggering.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oggyb/agentmatch/internal/metrics"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
)

// Func is one unit of work. The returned report is logged and handed back
// to manual callers.
type Func func(ctx context.Context) (any, error)

type task struct {
	name     string
	interval time.Duration
	run      Func
	busy     sync.Mutex
}

// Scheduler runs each registered task on its own ticker.
type Scheduler struct {
	log     *slog.Logger
	metrics *metrics.Collector

	mu    sync.RWMutex
	tasks map[string]*task
}

func NewScheduler(log *slog.Logger, m *metrics.Collector) *Scheduler {
	return &Scheduler{
		log:     log.With("component", "jobs"),
		metrics: m,
		tasks:   map[string]*task{},
	}
}

// Register adds a task. interval <= 0 makes it manual-only.
func (s *Scheduler) Register(name string, interval time.Duration, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = &task{name: name, interval: interval, run: fn}
}

// Names lists registered tasks, sorted.
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tasks))
	for n := range s.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunOnce runs the named task now. A task never overlaps with itself:
// a second caller gets ErrJobRunning.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (any, error) {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, t)
}

func (s *Scheduler) execute(ctx context.Context, t *task) (any, error) {
	if !t.busy.TryLock() {
		return nil, ErrJobRunning
	}
	defer t.busy.Unlock()

	start := time.Now()
	report, err := t.run(ctx)
	d := time.Since(start)
	s.metrics.RecordJob(t.name, d, err)

	if err != nil {
		s.log.Error("job failed", "job", t.name, "duration", d, "err", err)
		return report, err
	}
	s.log.Info("job finished", "job", t.name, "duration", d)
	return report, nil
}

// Run blocks until ctx is cancelled, ticking every periodic task. It returns
// only after all task loops have exited.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.RLock()
	periodic := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.interval > 0 {
			periodic = append(periodic, t)
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, t := range periodic {
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(t)
	}
	s.log.Info("scheduler started", "tasks", len(periodic))
	wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.execute(ctx, t); errors.Is(err, ErrJobRunning) {
				s.log.Warn("skipping tick, previous run still going", "job", t.name)
			}
		}
	}
}

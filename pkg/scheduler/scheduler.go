// Package scheduler implements the background Scheduler (spec §4.7):
// cron-triggered and filesystem-triggered plan firing, serialized
// per-plan-name so two firings of the same plan never mutate a
// project concurrently (spec §5's "implementations should serialize
// per-plan to prevent overlapping mutations to the same project").
package scheduler

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/agentrt/core/pkg/audit"
	"github.com/agentrt/core/pkg/bus"
	"github.com/agentrt/core/pkg/plan"
	"github.com/agentrt/core/pkg/planrunner"
	"github.com/agentrt/core/pkg/tool"
)

const tickInterval = time.Second

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithErrorLogger sets the logger used for watcher and cron firing
// errors (e.g. a plan file that fails to reparse).
func WithErrorLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.errLog = l }
}

// WithBus overrides the bus.MessageBus used to construct each firing's
// per-run audit.Logger. Defaults to a fresh bus.NewMemoryBus() per run
// (spec §9 Design Notes: "each run should own its own event channel").
func WithBus(newBus func() bus.MessageBus) Option {
	return func(s *Scheduler) { s.newBus = newBus }
}

// Scheduler owns every plan's cron job and/or filesystem watcher for
// the process lifetime. It builds a fresh planrunner.Runner for each
// firing so every run gets its own bus and audit.Logger (spec §9
// Design Notes: "each run should own its own event channel").
type Scheduler struct {
	executor planrunner.StepExecutor
	runsDir  string
	errLog   *log.Logger
	newBus   func() bus.MessageBus

	mu       sync.Mutex
	planMu   map[string]*sync.Mutex
	cronJobs []*cronJob
	fsWatch  *fsnotify.Watcher
	triggers []*fsTrigger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type cronJob struct {
	plan *plan.Plan
	spec *CronSpec
}

// New constructs a Scheduler driving executor (an *execengine.Engine in
// production). Plans are registered via Start, not at construction.
func New(executor planrunner.StepExecutor, runsDir string, opts ...Option) *Scheduler {
	s := &Scheduler{
		executor: executor,
		runsDir:  runsDir,
		planMu:   make(map[string]*sync.Mutex),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newBus == nil {
		s.newBus = func() bus.MessageBus { return bus.NewMemoryBus() }
	}
	return s
}

// Start parses nothing itself — plans are supplied already parsed —
// and registers a cron job for every trigger kind "cron" plan and a
// debounced filesystem watcher for every trigger kind "fs" plan.
func (s *Scheduler) Start(plans []*plan.Plan) error {
	for _, p := range plans {
		switch p.Trigger.Kind {
		case plan.TriggerCron:
			if err := s.addCronJob(p); err != nil {
				return fmt.Errorf("scheduler: plan %s: %w", p.Name, err)
			}
		case plan.TriggerFS:
			if err := s.addFSTrigger(p); err != nil {
				return fmt.Errorf("scheduler: plan %s: %w", p.Name, err)
			}
		}
	}

	s.wg.Add(1)
	go s.tick()

	if s.fsWatch != nil {
		s.wg.Add(1)
		go s.watchLoop()
	}
	return nil
}

// Stop cancels the cron ticker, closes the filesystem watcher, and
// waits for in-flight goroutines to exit. Safe to call once; further
// calls are no-ops. Mirrors spec §4.7's SIGTERM lifecycle: "cancel all
// jobs, close all watchers, exit cleanly."
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		for _, t := range s.triggers {
			t.stop()
		}
		if s.fsWatch != nil {
			_ = s.fsWatch.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

func (s *Scheduler) addCronJob(p *plan.Plan) error {
	spec, err := ParseCron(p.Trigger.Cron, p.Trigger.Timezone)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cronJobs = append(s.cronJobs, &cronJob{plan: p, spec: spec})
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) addFSTrigger(p *plan.Plan) error {
	if s.fsWatch == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		s.fsWatch = w
	}

	for _, dir := range watchDirs(p.Trigger.Paths) {
		if err := addRecursive(s.fsWatch, dir); err != nil {
			return err
		}
	}

	debounce, err := parseDebounce(p.Trigger.Debounce)
	if err != nil {
		return err
	}

	planName := p.Name
	trig := newFSTrigger(planName, p.Trigger.Paths, debounce, func() { s.fireFS(p) })

	s.mu.Lock()
	s.triggers = append(s.triggers, trig)
	s.mu.Unlock()
	return nil
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort; a missing/unreadable dir is skipped, not fatal
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func parseDebounce(s string) (time.Duration, error) {
	if s == "" {
		return defaultDebounce, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", s, err)
	}
	return d, nil
}

func (s *Scheduler) tick() {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.fireCronDue(now)
		}
	}
}

func (s *Scheduler) fireCronDue(now time.Time) {
	s.mu.Lock()
	jobs := append([]*cronJob{}, s.cronJobs...)
	s.mu.Unlock()

	for _, job := range jobs {
		if job.spec.Matches(now) {
			s.fireCron(job.plan)
		}
	}
}

func (s *Scheduler) watchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.fsWatch.Events:
			if !ok {
				return
			}
			s.mu.Lock()
			triggers := append([]*fsTrigger{}, s.triggers...)
			s.mu.Unlock()
			for _, t := range triggers {
				t.handle(event)
			}
		case err, ok := <-s.fsWatch.Errors:
			if !ok {
				return
			}
			s.logErr("scheduler: fsnotify: %v", err)
		}
	}
}

// fireCron runs p under its per-plan-name mutex, in its own goroutine
// so a slow or blocked run never stalls the ticker. mode=propose plans
// create a draft run record instead of executing.
func (s *Scheduler) fireCron(p *plan.Plan) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSerialized(p)
	}()
}

func (s *Scheduler) fireFS(p *plan.Plan) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSerialized(p)
	}()
}

func (s *Scheduler) runSerialized(p *plan.Plan) {
	mu := s.planMutex(p.Name)
	mu.Lock()
	defer mu.Unlock()

	ctx := context.Background()
	if p.Mode == plan.ModePropose {
		s.recordProposal(ctx, p)
		return
	}

	runID := newRunID()
	b := s.newBus()
	logger, err := audit.New(s.runsDir, runID, p.Name, b)
	if err != nil {
		s.logErr("scheduler: plan %s: audit.New: %v", p.Name, err)
		return
	}

	ec := &tool.ExecutionContext{Ctx: ctx, RunID: runID}
	ec.EmitEvent = func(kind string, payload map[string]any) {
		_ = logger.Emit(ctx, audit.Kind(kind), payload)
	}
	runner := planrunner.New(s.executor, planrunner.WithLogger(logger))
	status := runner.Run(ctx, p, ec)
	if _, err := logger.Complete(string(status)); err != nil {
		s.logErr("scheduler: plan %s: audit.Complete: %v", p.Name, err)
	}
}

// recordProposal creates a draft run record without executing any
// step, per spec §4.7: "mode=propose plans create a draft run record
// instead of executing." It remains re-approvable until
// audit.PruneProposals culls it past the retention horizon.
func (s *Scheduler) recordProposal(ctx context.Context, p *plan.Plan) {
	runID := newRunID()
	b := s.newBus()
	logger, err := audit.New(s.runsDir, runID, p.Name, b)
	if err != nil {
		s.logErr("scheduler: plan %s: propose: audit.New: %v", p.Name, err)
		return
	}
	if _, err := logger.Complete("proposed"); err != nil {
		s.logErr("scheduler: plan %s: propose: audit.Complete: %v", p.Name, err)
	}
}

func (s *Scheduler) planMutex(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.planMu[name]
	if !ok {
		mu = &sync.Mutex{}
		s.planMu[name] = mu
	}
	return mu
}

func (s *Scheduler) logErr(format string, args ...any) {
	if s.errLog != nil {
		s.errLog.Printf(format, args...)
	}
}

func newRunID() string {
	return ulid.Make().String()
}

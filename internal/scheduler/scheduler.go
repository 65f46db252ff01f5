// Package scheduler persists and fires scheduled jobs (§4.9): a five-field
// cron engine for recurring triggers, an absolute-instant timer for
// natural-language one-shots, and a single JSON file rewritten atomically
// on every mutation.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// AutonomousPreamble is prepended to the synthetic prompt a fired job runs
// with: the human is absent, so the loop must not ask a follow-up
// question it can never get an answer to.
const AutonomousPreamble = "You are running autonomously on a schedule. There is no human present to answer " +
	"follow-up questions — make reasonable assumptions and complete the task, or clearly state what you could " +
	"not determine.\n\n"

// Runner executes one fired job's prompt through the tool-calling loop and
// returns the final content, independent of any live chat session.
type Runner interface {
	RunAutonomous(ctx context.Context, modelRef, systemPrompt, prompt string) (string, error)
}

// Notifier delivers a fired job's result to its recorded chat surface
// (matrix room or discord channel), per §4.10.
type Notifier interface {
	Notify(ctx context.Context, target models.ChatSurface, content string) error
}

// Scheduler owns the live job set, an in-process cron engine for recurring
// triggers, and a set of one-shot timers.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]models.ScheduledJob
	entryIDs map[string]cron.EntryID
	timers   map[string]*time.Timer

	path     string
	engine   *cron.Cron
	runner   Runner
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New loads path (if present), drops past one-shot triggers, and registers
// every remaining live job with a fresh cron engine. Call Start to begin
// firing.
func New(path string, runner Runner, notifier Notifier) (*Scheduler, error) {
	s := &Scheduler{
		jobs:     make(map[string]models.ScheduledJob),
		entryIDs: make(map[string]cron.EntryID),
		timers:   make(map[string]*time.Timer),
		path:     path,
		engine:   cron.New(),
		runner:   runner,
		notifier: notifier,
		logger:   slog.Default().With("component", "scheduler"),
		now:      time.Now,
	}

	loaded, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("scheduler: load %s: %w", path, err)
	}

	now := s.now()
	for _, job := range loaded {
		if job.OneShot && job.IsPastOneShot(now) {
			s.logger.Info("dropping past one-shot job", "id", job.ID)
			continue
		}
		s.jobs[job.ID] = job
		s.register(job)
	}
	return s, nil
}

// Start begins the cron engine; one-shot timers were already armed by New
// or Create.
func (s *Scheduler) Start() {
	s.engine.Start()
}

// Stop halts the cron engine and cancels pending one-shot timers.
func (s *Scheduler) Stop() {
	ctx := s.engine.Stop()
	<-ctx.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
}

// Create satisfies tools.Scheduler: it assigns an id, persists the job,
// and registers it for firing.
func (s *Scheduler) Create(job models.ScheduledJob) (string, error) {
	job.ID = uuid.NewString()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persist(snapshot); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return "", err
	}

	s.register(job)
	return job.ID, nil
}

// List satisfies tools.Scheduler.
func (s *Scheduler) List() []models.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Remove satisfies tools.Scheduler.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: job %q not found", id)
	}
	delete(s.jobs, id)
	s.unregisterLocked(id)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	return s.persist(snapshot)
}

func (s *Scheduler) snapshotLocked() []models.ScheduledJob {
	out := make([]models.ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// register arms a recurring cron entry or a one-shot timer for job,
// depending on which trigger it carries.
func (s *Scheduler) register(job models.ScheduledJob) {
	if job.OneShot {
		delay := job.At.Sub(s.now())
		if delay < 0 {
			delay = 0
		}
		s.mu.Lock()
		s.timers[job.ID] = time.AfterFunc(delay, func() { s.fireOneShot(job) })
		s.mu.Unlock()
		return
	}

	entryID, err := s.engine.AddFunc(job.CronExpr, func() { s.fire(job) })
	if err != nil {
		s.logger.Warn("cron job skipped: invalid expression", "id", job.ID, "expr", job.CronExpr, "error", err)
		return
	}
	s.mu.Lock()
	s.entryIDs[job.ID] = entryID
	s.mu.Unlock()
}

func (s *Scheduler) unregisterLocked(id string) {
	if entryID, ok := s.entryIDs[id]; ok {
		s.engine.Remove(entryID)
		delete(s.entryIDs, id)
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// fireOneShot self-deletes the job before firing, so a crash mid-run never
// causes a duplicate fire on restart.
func (s *Scheduler) fireOneShot(job models.ScheduledJob) {
	s.mu.Lock()
	delete(s.jobs, job.ID)
	delete(s.timers, job.ID)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persist(snapshot); err != nil {
		s.logger.Error("failed to persist after one-shot removal", "id", job.ID, "error", err)
	}
	s.fire(job)
}

func (s *Scheduler) fire(job models.ScheduledJob) {
	ctx := context.Background()

	prompt := job.Prompt
	if job.Command != "" {
		out, err := runCommand(ctx, job.Command)
		if err != nil {
			prompt = fmt.Sprintf("Command `%s` failed: %s\n%s\n\n%s", job.Command, err, out, prompt)
		} else {
			prompt = fmt.Sprintf("Output of `%s`:\n%s\n\n%s", job.Command, out, prompt)
		}
	}

	model := job.Model
	result, err := s.runner.RunAutonomous(ctx, model, AutonomousPreamble, prompt)
	if err != nil {
		s.logger.Error("scheduled job failed", "id", job.ID, "error", err)
		result = fmt.Sprintf("scheduled job %s failed: %s", job.ID, err)
	}

	if err := s.notifier.Notify(ctx, job.Target, result); err != nil {
		s.logger.Error("scheduled job notification failed", "id", job.ID, "error", err)
	}
}

func runCommand(ctx context.Context, command string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	out, err := exec.CommandContext(runCtx, "/bin/sh", "-c", command).CombinedOutput()
	return string(out), err
}

func (s *Scheduler) load() ([]models.ScheduledJob, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var jobs []models.ScheduledJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("corrupt schedule file: %w", err)
	}
	return jobs, nil
}

func (s *Scheduler) persist(jobs []models.ScheduledJob) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	prompts  []string
	response string
}

func (f *fakeRunner) RunAutonomous(ctx context.Context, modelRef, systemPreamble, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.response, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []string
}

func (f *fakeNotifier) Notify(ctx context.Context, target models.ChatSurface, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, content)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeRunner, *fakeNotifier) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.json")
	runner := &fakeRunner{response: "done"}
	notifier := &fakeNotifier{}
	s, err := New(path, runner, notifier)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, runner, notifier
}

func TestCreateListRemove(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	id, err := s.Create(models.ScheduledJob{CronExpr: "*/5 * * * *", Prompt: "say hi"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	jobs := s.List()
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Fatalf("List() = %+v, want one job with id %s", jobs, id)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("expected empty job set after remove")
	}
}

func TestRemoveUnknownJobErrors(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if err := s.Remove("nonexistent"); err == nil {
		t.Fatal("expected error removing unknown job")
	}
}

func TestPersistenceSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	runner := &fakeRunner{}
	notifier := &fakeNotifier{}

	s1, err := New(path, runner, notifier)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	id, err := s1.Create(models.ScheduledJob{CronExpr: "0 9 * * *", Prompt: "morning briefing"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	s2, err := New(path, runner, notifier)
	if err != nil {
		t.Fatalf("reload New() error = %v", err)
	}
	jobs := s2.List()
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Fatalf("reloaded jobs = %+v, want job %s", jobs, id)
	}
}

func TestPastOneShotDroppedOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	runner := &fakeRunner{}
	notifier := &fakeNotifier{}

	s1, err := New(path, runner, notifier)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = s1.Create(models.ScheduledJob{
		At:      time.Now().Add(-time.Hour),
		OneShot: true,
		Prompt:  "stale reminder",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	s2, err := New(path, runner, notifier)
	if err != nil {
		t.Fatalf("reload New() error = %v", err)
	}
	if len(s2.List()) != 0 {
		t.Fatalf("expected past one-shot to be dropped, got %+v", s2.List())
	}
}

func TestOneShotFiresAndSelfDeletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	runner := &fakeRunner{response: "reminder delivered"}
	notifier := &fakeNotifier{}

	s, err := New(path, runner, notifier)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	id, err := s.Create(models.ScheduledJob{
		At:      s.now().Add(10 * time.Millisecond),
		OneShot: true,
		Prompt:  "ping",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		notifier.mu.Lock()
		n := len(notifier.delivered)
		notifier.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("one-shot job %s never fired", id)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if len(s.List()) != 0 {
		t.Fatalf("expected self-deleted job set, got %+v", s.List())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) == "" {
		t.Fatal("expected persisted (empty) job list after self-delete")
	}
}

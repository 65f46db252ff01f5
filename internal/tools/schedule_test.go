package tools

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

type stubScheduler struct {
	created models.ScheduledJob
}

func (s *stubScheduler) Create(job models.ScheduledJob) (string, error) {
	s.created = job
	return "job-1", nil
}
func (s *stubScheduler) List() []models.ScheduledJob { return nil }
func (s *stubScheduler) Remove(id string) error      { return nil }

func TestScheduleToolCreateUsesContextSurface(t *testing.T) {
	sched := &stubScheduler{}
	tool := NewScheduleTool(sched)

	surface := models.ChatSurface{Platform: "matrix", RoomID: "!room:example.org"}
	ctx := WithSurface(context.Background(), surface)

	out, err := tool.Run(ctx, map[string]any{
		"action":  "create",
		"trigger": "in 5 minutes",
		"prompt":  "remind me",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "created job job-1" {
		t.Fatalf("unexpected result: %q", out)
	}
	if sched.created.Target != surface {
		t.Fatalf("created job target = %+v, want %+v", sched.created.Target, surface)
	}
}

func TestScheduleToolCreateWithoutSurfaceIsUnbound(t *testing.T) {
	sched := &stubScheduler{}
	tool := NewScheduleTool(sched)

	_, err := tool.Run(context.Background(), map[string]any{
		"action":  "create",
		"trigger": "in 5 minutes",
		"command": "backup",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sched.created.Target.Bound() {
		t.Fatalf("expected an unbound target, got %+v", sched.created.Target)
	}
}

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// Scheduler is the narrow capability the schedule tool needs (§4.9); the
// concrete implementation lives in internal/scheduler and is injected here
// to keep this package free of that dependency.
type Scheduler interface {
	Create(job models.ScheduledJob) (string, error)
	List() []models.ScheduledJob
	Remove(id string) error
}

// ScheduleTool mutates the Scheduler's job set per action in {create, list,
// remove}.
type ScheduleTool struct {
	Scheduler Scheduler
}

func NewScheduleTool(s Scheduler) *ScheduleTool {
	return &ScheduleTool{Scheduler: s}
}

func (t *ScheduleTool) Name() string        { return "schedule" }
func (t *ScheduleTool) Tier() Tier          { return TierMain }
func (t *ScheduleTool) Description() string { return "Create, list, or remove scheduled jobs." }

func (t *ScheduleTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action":  map[string]any{"type": "string", "enum": []string{"create", "list", "remove"}},
			"trigger": map[string]any{"type": "string", "description": "cron expression, 'in N minutes', or 'in N hours'"},
			"prompt":  map[string]any{"type": "string"},
			"command": map[string]any{"type": "string"},
			"model":   map[string]any{"type": "string"},
			"id":      map[string]any{"type": "string", "description": "job id, required for remove"},
		},
		"required": []string{"action"},
	}
}

func (t *ScheduleTool) Run(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)
	switch action {
	case "create":
		return t.create(ctx, args)
	case "list":
		return t.list()
	case "remove":
		return t.remove(args)
	default:
		return fmt.Sprintf("error: unknown action %q", action), nil
	}
}

func (t *ScheduleTool) create(ctx context.Context, args map[string]any) (string, error) {
	trigger, _ := args["trigger"].(string)
	prompt, _ := args["prompt"].(string)
	command, _ := args["command"].(string)
	model, _ := args["model"].(string)

	if trigger == "" || (prompt == "" && command == "") {
		return "error: trigger and (prompt or command) are required", nil
	}

	surface, _ := SurfaceFromContext(ctx)
	job := models.ScheduledJob{
		Command:   command,
		Prompt:    prompt,
		Model:     model,
		Target:    surface,
		CreatedAt: time.Now(),
	}

	if at, oneShot, ok := parseAbsoluteTrigger(trigger); ok {
		job.At = at
		job.OneShot = oneShot
	} else {
		job.CronExpr = trigger
	}

	id, err := t.Scheduler.Create(job)
	if err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	return fmt.Sprintf("created job %s", id), nil
}

func (t *ScheduleTool) list() (string, error) {
	jobs := t.Scheduler.List()
	if len(jobs) == 0 {
		return "no scheduled jobs", nil
	}
	var b strings.Builder
	for _, j := range jobs {
		trigger := j.CronExpr
		if trigger == "" {
			trigger = j.At.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s | %s | %s\n", j.ID, trigger, firstNonEmpty(j.Prompt, j.Command))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *ScheduleTool) remove(args map[string]any) (string, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return "error: id is required", nil
	}
	if err := t.Scheduler.Remove(id); err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	return fmt.Sprintf("removed job %s", id), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseAbsoluteTrigger recognizes the natural-language "in N minutes" / "in
// N hours" forms and marks the resulting job one-shot, per §4.9.
func parseAbsoluteTrigger(trigger string) (time.Time, bool, bool) {
	lower := strings.ToLower(strings.TrimSpace(trigger))
	var n int
	var unit string
	if _, err := fmt.Sscanf(lower, "in %d minute", &n); err == nil {
		unit = "minute"
	} else if _, err := fmt.Sscanf(lower, "in %d minutes", &n); err == nil {
		unit = "minute"
	} else if _, err := fmt.Sscanf(lower, "in %d hour", &n); err == nil {
		unit = "hour"
	} else if _, err := fmt.Sscanf(lower, "in %d hours", &n); err == nil {
		unit = "hour"
	} else {
		return time.Time{}, false, false
	}

	switch unit {
	case "minute":
		return time.Now().Add(time.Duration(n) * time.Minute), true, true
	case "hour":
		return time.Now().Add(time.Duration(n) * time.Hour), true, true
	}
	return time.Time{}, false, false
}

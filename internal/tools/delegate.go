package tools

import (
	"context"
	"fmt"
)

// SubAgentRunner is the narrow capability invoke_model needs from the
// Sub-Agent Runner (§4.6); it is injected at wiring time so this package
// never imports the agent loop directly (the loop in turn depends on this
// package for its tool registry, which would otherwise be a cycle).
type SubAgentRunner func(ctx context.Context, modelRef, message string) (string, error)

// InvokeModelTool delegates to the Sub-Agent Runner.
type InvokeModelTool struct {
	Run_ SubAgentRunner
}

func NewInvokeModelTool(run SubAgentRunner) *InvokeModelTool {
	return &InvokeModelTool{Run_: run}
}

func (t *InvokeModelTool) Name() string        { return "invoke_model" }
func (t *InvokeModelTool) Tier() Tier          { return TierMain }
func (t *InvokeModelTool) Description() string { return "Delegate a task to a sub-agent invocation of the given model." }

func (t *InvokeModelTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model":   map[string]any{"type": "string"},
			"message": map[string]any{"type": "string"},
		},
		"required": []string{"model", "message"},
	}
}

func (t *InvokeModelTool) Run(ctx context.Context, args map[string]any) (string, error) {
	model, _ := args["model"].(string)
	message, _ := args["message"].(string)
	if model == "" || message == "" {
		return "error: model and message are required", nil
	}
	result, err := t.Run_(ctx, model, message)
	if err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	return result, nil
}

// DebateRunner is the narrow capability the debate tool needs from the
// Debate Orchestrator (§4.7).
type DebateRunner func(ctx context.Context, topic, perspectiveA, perspectiveB string, models []string, rounds int, language string) (string, error)

// DebateTool delegates to the Debate Orchestrator.
type DebateTool struct {
	Run_ DebateRunner
}

func NewDebateTool(run DebateRunner) *DebateTool {
	return &DebateTool{Run_: run}
}

func (t *DebateTool) Name() string        { return "debate" }
func (t *DebateTool) Tier() Tier          { return TierMain }
func (t *DebateTool) Description() string {
	return "Run a structured multi-round debate between two perspectives and return a synthesis."
}

func (t *DebateTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic":         map[string]any{"type": "string"},
			"perspective_a": map[string]any{"type": "string"},
			"perspective_b": map[string]any{"type": "string"},
			"models":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"rounds":        map[string]any{"type": "integer", "default": 3},
			"language":      map[string]any{"type": "string", "default": "en"},
		},
		"required": []string{"topic", "perspective_a", "perspective_b"},
	}
}

func (t *DebateTool) Run(ctx context.Context, args map[string]any) (string, error) {
	topic, _ := args["topic"].(string)
	perspectiveA, _ := args["perspective_a"].(string)
	perspectiveB, _ := args["perspective_b"].(string)
	if topic == "" || perspectiveA == "" || perspectiveB == "" {
		return "error: topic, perspective_a and perspective_b are required", nil
	}

	rounds := 3
	if v, ok := args["rounds"].(float64); ok && v > 0 {
		rounds = int(v)
	}
	language, _ := args["language"].(string)
	if language == "" {
		language = "en"
	}

	var models []string
	if raw, ok := args["models"].([]any); ok {
		for _, m := range raw {
			if s, ok := m.(string); ok {
				models = append(models, s)
			}
		}
	}

	result, err := t.Run_(ctx, topic, perspectiveA, perspectiveB, models, rounds, language)
	if err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	return result, nil
}

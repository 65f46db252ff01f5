package tools

import (
	"context"
	"testing"
)

type stubTool struct {
	name string
	tier Tier
}

func (s stubTool) Name() string          { return s.name }
func (s stubTool) Description() string   { return "stub" }
func (s stubTool) Tier() Tier            { return s.tier }
func (s stubTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (s stubTool) Run(ctx context.Context, args map[string]any) (string, error) {
	return "ok:" + s.name, nil
}

func TestMainLoopSeesFullCatalog(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "exec", tier: TierSubagent})
	r.Register(stubTool{name: "schedule", tier: TierMain})

	out, isErr := r.Run(context.Background(), TierMain, "exec", nil)
	if isErr || out != "ok:exec" {
		t.Fatalf("main loop should reach a subagent-tier tool, got %q (isErr=%v)", out, isErr)
	}
	out, isErr = r.Run(context.Background(), TierMain, "schedule", nil)
	if isErr || out != "ok:schedule" {
		t.Fatalf("main loop should reach a main-tier tool, got %q (isErr=%v)", out, isErr)
	}
}

func TestSubagentRestrictedToSharedTier(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "exec", tier: TierSubagent})
	r.Register(stubTool{name: "schedule", tier: TierMain})

	out, isErr := r.Run(context.Background(), TierSubagent, "exec", nil)
	if isErr || out != "ok:exec" {
		t.Fatalf("sub-agent should reach a subagent-tier tool, got %q (isErr=%v)", out, isErr)
	}

	out, isErr = r.Run(context.Background(), TierSubagent, "schedule", nil)
	if !isErr {
		t.Fatalf("sub-agent should be refused a main-tier tool, got %q", out)
	}
}

func TestSchemasFilterByTier(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "exec", tier: TierSubagent})
	r.Register(stubTool{name: "schedule", tier: TierMain})

	subagentSchemas := r.Schemas(TierSubagent)
	if len(subagentSchemas) != 1 || subagentSchemas[0].Name != "exec" {
		t.Fatalf("expected sub-agent to see only exec, got %+v", subagentSchemas)
	}

	mainSchemas := r.Schemas(TierMain)
	if len(mainSchemas) != 2 {
		t.Fatalf("expected main loop to see both tools, got %+v", mainSchemas)
	}
}

func TestRunUnknownToolRefuses(t *testing.T) {
	r := NewRegistry()
	out, isErr := r.Run(context.Background(), TierMain, "nonexistent", nil)
	if !isErr {
		t.Fatalf("expected refusal for unknown tool, got %q", out)
	}
}

type schemaTool struct{ stubTool }

func (s schemaTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func TestRunRefusesArgsThatViolateSchema(t *testing.T) {
	r := NewRegistry()
	r.Register(schemaTool{stubTool{name: "read_url", tier: TierSubagent}})

	out, isErr := r.Run(context.Background(), TierMain, "read_url", map[string]any{})
	if !isErr {
		t.Fatalf("expected refusal for missing required argument, got %q", out)
	}

	out, isErr = r.Run(context.Background(), TierMain, "read_url", map[string]any{"path": "https://example.com"})
	if isErr || out != "ok:read_url" {
		t.Fatalf("expected success with valid args, got %q (isErr=%v)", out, isErr)
	}
}

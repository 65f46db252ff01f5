// Package tools implements the fixed catalog of side-effecting operations
// the model may invoke (§4.1): a stable name, a JSON-schema argument
// description, a privilege tier, and a synchronous execution contract
// returning a single string. The executor never lets a tool failure escape
// as a Go error out of the loop — it is surfaced into the conversation as
// the tool's result string instead.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus-assistant/internal/providers"
)

// Tier gates which loops may invoke a tool.
type Tier int

const (
	// TierSubagent is available to both the main loop and sub-agent
	// invocations (§4.1: exec, web_search, check_url, read_url). It is the
	// lower tier so a sub-agent's caller tier naturally excludes anything
	// above it.
	TierSubagent Tier = iota
	// TierMain is available only to the main agentic loop.
	TierMain
)

// Tool is the common contract every tool implementation satisfies, per the
// Design Notes' "registry mapping name -> implementation" guidance.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Tier() Tier
	Run(ctx context.Context, args map[string]any) (string, error)
}

// Registry is a name-keyed dispatch table; Run never returns a Go error: a
// tool-level failure, an unknown tool or a tier refusal comes back as a
// result string with isError set.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns the published tool schema for every registered tool
// visible at callerTier, in stable name order so the wire request is
// deterministic. The main loop calls this with TierMain and sees the full
// catalog; a sub-agent calls it with TierSubagent and sees only the tools
// also marked TierSubagent.
func (r *Registry) Schemas(callerTier Tier) []providers.ToolSchema {
	names := make([]string, 0, len(r.tools))
	for name, t := range r.tools {
		if t.Tier() <= callerTier {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]providers.ToolSchema, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		out = append(out, providers.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return out
}

// refusalRequiredPrefix starts the string returned (not raised) when a tool call targets a tool
// outside the caller's tier — e.g. a sub-agent invoking `schedule`.
const refusalRequiredPrefix = "refused: "

// Run executes name with args on behalf of a caller at callerTier. A tool
// call for a name that isn't registered, or whose tier exceeds the
// caller's, returns a refusal string rather than an error — the model sees
// it and may recover. An in-tool panic or returned error is likewise turned
// into a result string; the executor itself never throws out of the loop.
func (r *Registry) Run(ctx context.Context, callerTier Tier, name string, args map[string]any) (result string, isError bool) {
	t, ok := r.tools[name]
	if !ok {
		return refusalRequiredPrefix + fmt.Sprintf("unknown tool %q", name), true
	}
	if t.Tier() > callerTier {
		return refusalRequiredPrefix + fmt.Sprintf("tool %q is not available to this caller", name), true
	}

	if err := validateArgs(name, t.Schema(), args); err != nil {
		return refusalRequiredPrefix + err.Error(), true
	}

	out, err := safeRun(ctx, t, args)
	if err != nil {
		return err.Error(), true
	}
	return out, false
}

// schemaCache avoids recompiling a tool's JSON schema on every call; tool
// schemas are static for the process lifetime, so the cache never evicts.
var schemaCache sync.Map

// validateArgs rejects a tool call whose arguments don't satisfy the tool's
// published schema before it ever reaches Run, compiling each schema once
// and caching it in schemaCache.
func validateArgs(toolName string, schemaDoc map[string]any, args map[string]any) error {
	compiled, err := compileToolSchema(toolName, schemaDoc)
	if err != nil {
		return fmt.Errorf("tool %q has an invalid schema: %w", toolName, err)
	}
	if args == nil {
		args = map[string]any{}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("arguments for %q invalid: %w", toolName, err)
	}
	return nil
}

func compileToolSchema(toolName string, schemaDoc map[string]any) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(toolName); ok {
		return cached.(*jsonschema.Schema), nil
	}

	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}
	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(toolName, compiled)
	return compiled, nil
}

func safeRun(ctx context.Context, t Tool, args map[string]any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q panicked: %v", t.Name(), r)
		}
	}()
	return t.Run(ctx, args)
}

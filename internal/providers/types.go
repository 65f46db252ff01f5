// Package providers implements the provider-abstraction layer: one adapter
// per backend dialect (Anthropic, OpenAI, DeepSeek, Google Gemini, Ollama,
// Claude-Code CLI) behind a uniform blocking/streaming chat contract, plus
// the dispatcher that resolves a model reference to a configured adapter.
package providers

import (
	"context"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// ToolSchema is the JSON-schema description of one tool, as published to a
// model. Registry.Schemas() produces these; adapters translate them into
// the wire shape their backend expects.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema "object" node
}

// ChatRequest is the uniform call every adapter accepts.
type ChatRequest struct {
	Model        string
	System       string
	Messages     []models.Message
	Tools        []ToolSchema
	Thinking     bool
	Options      map[string]any
	NumCtx       int
	TimeoutSecs  int
}

// ChatResponse is the uniform shape every blocking adapter call returns.
type ChatResponse struct {
	Content    string
	Thinking   string
	ToolCalls  []models.ToolCall
	StopReason string
}

// ChunkKind tags a streaming event.
type ChunkKind string

const (
	ChunkThinkingDelta  ChunkKind = "thinking-delta"
	ChunkContentDelta   ChunkKind = "content-delta"
	ChunkToolCallsReady ChunkKind = "tool-calls-complete"
	ChunkDone           ChunkKind = "done"
)

// StreamChunk is one normalized streaming event. Providers that stream
// tool-call fragments accumulate internally and emit ChunkToolCallsReady
// exactly once per round, with the consolidated ToolCalls slice attached.
type StreamChunk struct {
	Kind      ChunkKind
	Delta     string
	ToolCalls []models.ToolCall
	Err       error
}

// Capabilities describes what a given model supports. Adapters resolve this
// either via a capability query (Ollama /api/show) or a name heuristic.
type Capabilities struct {
	Tools           bool
	Vision          bool
	Thinking        bool
	ImageGeneration bool
}

// Adapter is implemented once per provider dialect.
type Adapter interface {
	// Name is the provider type string, e.g. "anthropic".
	Name() string

	// Capabilities reports what modelID supports on this provider.
	Capabilities(modelID string) Capabilities

	// Complete performs a single blocking round-trip.
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Stream performs a single round-trip, emitting chunks on the returned
	// channel until it is closed. The channel is always closed, with a
	// final ChunkDone (possibly carrying Err) as the last value.
	Stream(ctx context.Context, req ChatRequest) <-chan StreamChunk
}

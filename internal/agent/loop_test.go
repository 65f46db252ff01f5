package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// scriptedAdapter replays a fixed sequence of responses, one per Complete
// call, so a test can drive the loop through a specific round shape.
type scriptedAdapter struct {
	name      string
	responses []providers.ChatResponse
	errs      []error
	calls     int
}

func (s *scriptedAdapter) Name() string                    { return s.name }
func (s *scriptedAdapter) Capabilities(string) providers.Capabilities { return providers.Capabilities{Tools: true} }

func (s *scriptedAdapter) Complete(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return providers.ChatResponse{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return providers.ChatResponse{}, nil
}

// Stream replays the same scripted sequence Complete does, as a single
// content-delta chunk per call plus a tool-calls-ready chunk when the
// scripted response carries tool calls — the loop drives every round
// through Stream now, so the test double must speak it.
func (s *scriptedAdapter) Stream(ctx context.Context, req providers.ChatRequest) <-chan providers.StreamChunk {
	i := s.calls
	s.calls++

	ch := make(chan providers.StreamChunk, 4)
	go func() {
		defer close(ch)
		if i < len(s.errs) && s.errs[i] != nil {
			ch <- providers.StreamChunk{Kind: providers.ChunkDone, Err: s.errs[i]}
			return
		}
		var resp providers.ChatResponse
		if i < len(s.responses) {
			resp = s.responses[i]
		}
		if resp.Thinking != "" {
			ch <- providers.StreamChunk{Kind: providers.ChunkThinkingDelta, Delta: resp.Thinking}
		}
		if resp.Content != "" {
			ch <- providers.StreamChunk{Kind: providers.ChunkContentDelta, Delta: resp.Content}
		}
		if len(resp.ToolCalls) > 0 {
			ch <- providers.StreamChunk{Kind: providers.ChunkToolCallsReady, ToolCalls: resp.ToolCalls}
		}
		ch <- providers.StreamChunk{Kind: providers.ChunkDone}
	}()
	return ch
}

func newTestLoop(adapter providers.Adapter) (*Loop, *models.Session) {
	rec := models.ProviderRecord{
		Name:   "test",
		Type:   models.ProviderAnthropic,
		NumCtx: 8192,
		Models: models.ModelCatalog{Default: "model-a"},
	}
	dispatcher := providers.NewDispatcher([]string{"test"},
		map[string]models.ProviderRecord{"test": rec},
		map[string]providers.Adapter{"test": adapter},
	)
	loop := NewLoop(dispatcher, nil, cancel.New(), nil)
	sess := models.NewSession("s1", "web", "u1")
	sess.Model = "test/model-a"
	sess.SystemPrompt = "be helpful"
	sess.Append(models.Message{Role: models.RoleUser, Content: "hello"})
	return loop, sess
}

func emptyToolSet() *ToolSet {
	return &ToolSet{Registry: tools.NewRegistry(), Tier: tools.TierMain}
}

func TestLoopTerminatesOnPlainContent(t *testing.T) {
	adapter := &scriptedAdapter{name: "test", responses: []providers.ChatResponse{
		{Content: "hi there"},
	}}
	loop, sess := newTestLoop(adapter)

	result, err := loop.Run(context.Background(), sess, emptyToolSet(), LoopOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "hi there" {
		t.Fatalf("content = %q, want %q", result.Content, "hi there")
	}
	if adapter.calls != 1 {
		t.Fatalf("expected exactly one adapter call, got %d", adapter.calls)
	}
}

func TestLoopExecutesToolCallsAcrossRounds(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"x": 1})
	adapter := &scriptedAdapter{name: "test", responses: []providers.ChatResponse{
		{Content: "", ToolCalls: []models.ToolCall{{ID: "c1", Name: "echo", Input: args}}},
		{Content: "final answer"},
	}}
	loop, sess := newTestLoop(adapter)

	reg := tools.NewRegistry()
	reg.Register(echoTool{})
	toolset := &ToolSet{Registry: reg, Tier: tools.TierMain}

	result, err := loop.Run(context.Background(), sess, toolset, LoopOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "final answer" {
		t.Fatalf("content = %q, want %q", result.Content, "final answer")
	}
	if adapter.calls != 2 {
		t.Fatalf("expected two adapter calls, got %d", adapter.calls)
	}
}

func TestLoopSendImageSuppressesFinalContent(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"path": "/tmp/x.png"})
	adapter := &scriptedAdapter{name: "test", responses: []providers.ChatResponse{
		{Content: "", ToolCalls: []models.ToolCall{{ID: "c1", Name: "send_image", Input: args}}},
		{Content: "here is your image"},
	}}
	loop, sess := newTestLoop(adapter)

	reg := tools.NewRegistry()
	reg.Register(tools.NewSendImageTool(tools.NewSinkRegistry()))
	toolset := &ToolSet{Registry: reg, Tier: tools.TierMain}

	result, err := loop.Run(context.Background(), sess, toolset, LoopOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "" {
		t.Fatalf("expected suppressed content, got %q", result.Content)
	}
	if !result.SentImage {
		t.Fatalf("expected SentImage to be true")
	}
}

func TestLoopNudgesOnceOnEmptyContent(t *testing.T) {
	adapter := &scriptedAdapter{name: "test", responses: []providers.ChatResponse{
		{Content: ""},
		{Content: "now I answer"},
	}}
	loop, sess := newTestLoop(adapter)

	result, err := loop.Run(context.Background(), sess, emptyToolSet(), LoopOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "now I answer" {
		t.Fatalf("content = %q, want nudge follow-up", result.Content)
	}
	if adapter.calls != 2 {
		t.Fatalf("expected nudge to trigger a second call, got %d calls", adapter.calls)
	}
}

// echoTool is a minimal TierMain-visible tool used only by this test.
type echoTool struct{}

func (echoTool) Name() string                                              { return "echo" }
func (echoTool) Description() string                                      { return "echo" }
func (echoTool) Tier() tools.Tier                                         { return tools.TierMain }
func (echoTool) Schema() map[string]any                                  { return map[string]any{"type": "object"} }
func (echoTool) Run(ctx context.Context, args map[string]any) (string, error) { return "echoed", nil }

package session

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus-assistant/internal/agent"
	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/channels"
	"github.com/haasonsaas/nexus-assistant/internal/config"
	"github.com/haasonsaas/nexus-assistant/internal/pairing"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// scriptedAdapter replays one fixed response for every Stream call,
// mirroring internal/agent's own test double.
type scriptedAdapter struct {
	content string
}

func (s *scriptedAdapter) Name() string { return "test" }
func (s *scriptedAdapter) Capabilities(string) providers.Capabilities {
	return providers.Capabilities{Tools: true}
}
func (s *scriptedAdapter) Complete(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	return providers.ChatResponse{Content: s.content}, nil
}
func (s *scriptedAdapter) Stream(ctx context.Context, req providers.ChatRequest) <-chan providers.StreamChunk {
	ch := make(chan providers.StreamChunk, 2)
	ch <- providers.StreamChunk{Kind: providers.ChunkContentDelta, Delta: s.content}
	ch <- providers.StreamChunk{Kind: providers.ChunkDone}
	close(ch)
	return ch
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	rec := models.ProviderRecord{
		Name:   "test",
		Type:   models.ProviderAnthropic,
		NumCtx: 8192,
		Models: models.ModelCatalog{Default: "model-a", List: []string{"model-a", "model-b"}},
	}
	dispatcher := providers.NewDispatcher([]string{"test"},
		map[string]models.ProviderRecord{"test": rec},
		map[string]providers.Adapter{"test": &scriptedAdapter{content: "hello from the model"}},
	)
	loop := agent.NewLoop(dispatcher, nil, cancel.New(), nil)
	registry := tools.NewRegistry()
	store := pairing.NewStore(t.TempDir())
	cfg := &config.Config{Workspace: t.TempDir()}

	return NewManager(cfg, dispatcher, loop, registry, store, nil, nil)
}

func TestRouteCreatesSessionAndRunsTurn(t *testing.T) {
	m := newTestManager(t)

	reply, err := m.Route(context.Background(), channels.IncomingMessage{
		Platform: "matrix",
		RoomID:   "!r:example.org",
		UserID:   "u1",
		Text:     "hi there",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if reply != "hello from the model" {
		t.Fatalf("Route() = %q, want model content", reply)
	}

	sess := m.sessionFor("matrix", "u1")
	if len(sess.Messages) != 2 {
		t.Fatalf("expected a user and assistant message, got %d", len(sess.Messages))
	}
	if sess.Surface.RoomID != "!r:example.org" {
		t.Fatalf("expected session surface to record the room id")
	}
}

func TestHandleMessageModelSwitchRejectsUnknownModel(t *testing.T) {
	m := newTestManager(t)
	result, err := m.HandleMessage(context.Background(), "matrix", "u1", "", "/model test/no-such-model", nil, nil)
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if result.Clear {
		t.Fatal("expected no clear on a rejected model switch")
	}
	if result.Content == "" {
		t.Fatal("expected an error message")
	}
}

func TestHandleMessageModelSwitchWarmsUp(t *testing.T) {
	m := newTestManager(t)
	result, err := m.HandleMessage(context.Background(), "matrix", "u1", "", "/model test/model-b", nil, nil)
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !result.Clear {
		t.Fatal("expected a model switch to clear the transcript")
	}

	sess := m.sessionFor("matrix", "u1")
	if sess.Model != "test/model-b" {
		t.Fatalf("session model = %q, want test/model-b", sess.Model)
	}
}

func TestHandleMessageNewResetsHistory(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Route(context.Background(), channels.IncomingMessage{Platform: "discord", UserID: "u2", Text: "hi"}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	result, err := m.HandleMessage(context.Background(), "discord", "u2", "", "/new", nil, nil)
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !result.Clear {
		t.Fatal("expected /new to clear")
	}
	sess := m.sessionFor("discord", "u2")
	if len(sess.Messages) != 0 {
		t.Fatalf("expected history cleared, got %d messages", len(sess.Messages))
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		rest string
		ok   bool
	}{
		{"/model anthropic/claude", "model", "anthropic/claude", true},
		{"/new", "new", "", true},
		{"hello", "", "", false},
		{"/", "", "", false},
	}
	for _, tt := range tests {
		cmd, ok := parseCommand(tt.text)
		if ok != tt.ok || cmd.name != tt.name || cmd.rest != tt.rest {
			t.Errorf("parseCommand(%q) = (%+v, %v), want name=%q rest=%q ok=%v", tt.text, cmd, ok, tt.name, tt.rest, tt.ok)
		}
	}
}

func TestCmdAuthRedeemsCode(t *testing.T) {
	m := newTestManager(t)
	code, err := m.pairing.RequestCode("matrix", "u9")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	reply := m.cmdAuth(code)
	if reply == "" {
		t.Fatal("expected a confirmation reply")
	}
	authorized, err := m.pairing.IsAuthorized("matrix", "u9")
	if err != nil {
		t.Fatalf("IsAuthorized() error = %v", err)
	}
	if !authorized {
		t.Fatal("expected the identity to be authorized")
	}
}

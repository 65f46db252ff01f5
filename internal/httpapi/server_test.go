package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/nexus-assistant/internal/agent"
	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/config"
	"github.com/haasonsaas/nexus-assistant/internal/pairing"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/internal/session"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

type scriptedAdapter struct{ content string }

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

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	rec := models.ProviderRecord{
		Name:   "test",
		Type:   models.ProviderAnthropic,
		NumCtx: 8192,
		Models: models.ModelCatalog{Default: "model-a", List: []string{"model-a"}},
	}
	dispatcher := providers.NewDispatcher([]string{"test"},
		map[string]models.ProviderRecord{"test": rec},
		map[string]providers.Adapter{"test": &scriptedAdapter{content: "hello from the model"}},
	)
	loop := agent.NewLoop(dispatcher, nil, cancel.New(), nil)
	registry := tools.NewRegistry()
	store := pairing.NewStore(t.TempDir())
	cfg := &config.Config{Workspace: t.TempDir()}
	manager := session.NewManager(cfg, dispatcher, loop, registry, store, nil, nil)

	return NewServer(Config{Host: "127.0.0.1", Port: 0, Token: token, Manager: manager, Pairing: store})
}

func readNDJSON(t *testing.T, body *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var obj map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
			t.Fatalf("invalid ndjson line %q: %v", scanner.Text(), err)
		}
		out = append(out, obj)
	}
	return out
}

func TestHandleChatStreamWritesDoneEvent(t *testing.T) {
	s := newTestServer(t, "")

	body := bytes.NewBufferString(`{"message":"hi there","session_id":"u1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	rec := httptest.NewRecorder()

	s.mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	events := readNDJSON(t, rec.Body)
	if len(events) < 2 {
		t.Fatalf("expected at least a status and a done event, got %d", len(events))
	}
	last := events[len(events)-1]
	if last["type"] != "done" {
		t.Fatalf("last event type = %v, want done", last["type"])
	}
	if last["content"] != "hello from the model" {
		t.Fatalf("done content = %v, want model content", last["content"])
	}
	if last["session_id"] != "u1" {
		t.Fatalf("done session_id = %v, want u1", last["session_id"])
	}
}

func TestChatStreamRequiresTokenWhenConfigured(t *testing.T) {
	s := newTestServer(t, "secret")

	body := bytes.NewBufferString(`{"message":"hi","session_id":"u2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	rec := httptest.NewRecorder()

	s.mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestChatStreamAcceptsBearerTokenAndSetsCookie(t *testing.T) {
	s := newTestServer(t, "secret")

	body := bytes.NewBufferString(`{"message":"hi","session_id":"u3"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()

	s.mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie to be set after bearer-token auth")
	}
}

func TestHandleAuthRedeemsCode(t *testing.T) {
	s := newTestServer(t, "")

	code, err := s.pairing.RequestCode("matrix", "u9")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	body := bytes.NewBufferString(`{"code":"` + code + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/matrix", body)
	rec := httptest.NewRecorder()

	s.mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["ok"] != true || resp["platform"] != "matrix" || resp["user_id"] != "u9" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

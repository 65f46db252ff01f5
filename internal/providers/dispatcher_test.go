package providers

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

type fakeAdapter struct{ name string }

func (f fakeAdapter) Name() string                         { return f.name }
func (f fakeAdapter) Capabilities(string) Capabilities      { return Capabilities{} }
func (f fakeAdapter) Complete(context.Context, ChatRequest) (ChatResponse, error) {
	return ChatResponse{}, nil
}
func (f fakeAdapter) Stream(context.Context, ChatRequest) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	close(ch)
	return ch
}

func newTestDispatcher() *Dispatcher {
	records := map[string]models.ProviderRecord{
		"ollama": {
			Type: models.ProviderOllama,
			Models: models.ModelCatalog{
				Default: "llama3",
				Aliases: map[string]string{"fast": "llama3:8b"},
				List:    []string{"llama3"},
			},
		},
		"anthropic": {
			Type: models.ProviderAnthropic,
			Models: models.ModelCatalog{
				Default: "claude-sonnet-4",
				Aliases: map[string]string{"sonnet": "claude-sonnet-4-20250514"},
			},
		},
	}
	adapters := map[string]Adapter{
		"ollama":    fakeAdapter{name: "ollama"},
		"anthropic": fakeAdapter{name: "anthropic"},
	}
	return NewDispatcher([]string{"ollama", "anthropic"}, records, adapters)
}

func TestResolveExplicitPrefix(t *testing.T) {
	d := newTestDispatcher()
	r, err := d.Resolve("anthropic/sonnet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ProviderName != "anthropic" {
		t.Fatalf("provider = %q, want anthropic", r.ProviderName)
	}
	if r.ModelID != "claude-sonnet-4-20250514" {
		t.Fatalf("model id = %q, want resolved alias", r.ModelID)
	}
}

func TestResolveNoPrefixScansAliasesDefaultWins(t *testing.T) {
	d := newTestDispatcher()
	r, err := d.Resolve("fast")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ProviderName != "ollama" {
		t.Fatalf("provider = %q, want ollama (default, first alias match)", r.ProviderName)
	}
	if r.ModelID != "llama3:8b" {
		t.Fatalf("model id = %q, want llama3:8b", r.ModelID)
	}
}

func TestSplitProviderPrefixGuardsRegistryPaths(t *testing.T) {
	providers := map[string]models.ProviderRecord{"ollama": {}}
	p, m := splitProviderPrefix("registry.example.com/library/llama3", providers)
	if p != "" {
		t.Fatalf("expected no prefix match for unknown provider segment, got %q", p)
	}
	if m != "registry.example.com/library/llama3" {
		t.Fatalf("expected ref unchanged, got %q", m)
	}
}

func TestSplitProviderPrefixGuardsColonBeforeSlash(t *testing.T) {
	providers := map[string]models.ProviderRecord{"ollama": {}}
	p, _ := splitProviderPrefix("host:5000/ollama", providers)
	if p != "" {
		t.Fatalf("expected no prefix split when ':' precedes '/', got %q", p)
	}
}

package models

// ProviderType enumerates the backend dialects a ProviderRecord may speak.
type ProviderType string

const (
	ProviderOllama     ProviderType = "ollama"
	ProviderGoogle     ProviderType = "google"
	ProviderOpenAI     ProviderType = "openai"
	ProviderDeepSeek   ProviderType = "deepseek"
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderClaudeCode ProviderType = "claude-code"
)

// ModelCatalog describes the models a ProviderRecord exposes.
type ModelCatalog struct {
	Default   string            `yaml:"default" json:"default"`
	Aliases   map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	List      []string          `yaml:"list,omitempty" json:"list,omitempty"`
	Fallbacks []string          `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
	Subagents []string          `yaml:"subagents,omitempty" json:"subagents,omitempty"`
}

// ProviderRecord is a configured LLM backend. Options and ModelOptions are
// free-form maps passed through largely as-is to the adapter; ModelOptions
// is an overlay keyed by bare model id where the innermost (model-specific)
// value wins over the provider-global Options.
type ProviderRecord struct {
	Name         string                    `yaml:"-" json:"name"`
	Type         ProviderType              `yaml:"type" json:"type"`
	BaseURL      string                    `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey       string                    `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	NumCtx       int                       `yaml:"num_ctx,omitempty" json:"num_ctx,omitempty"`
	Think        bool                      `yaml:"think,omitempty" json:"think,omitempty"`
	Options      map[string]any            `yaml:"options,omitempty" json:"options,omitempty"`
	ModelOptions map[string]map[string]any `yaml:"model_options,omitempty" json:"model_options,omitempty"`
	Models       ModelCatalog              `yaml:"models" json:"models"`
}

// ResolveModelOptions merges the provider-global Options with the
// per-model overlay for modelID, with the overlay winning key by key.
func (p ProviderRecord) ResolveModelOptions(modelID string) map[string]any {
	merged := make(map[string]any, len(p.Options))
	for k, v := range p.Options {
		merged[k] = v
	}
	if overlay, ok := p.ModelOptions[modelID]; ok {
		for k, v := range overlay {
			merged[k] = v
		}
	}
	return merged
}

// ResolveAlias rewrites a short model name to its concrete id, or returns
// name unchanged if no alias applies.
func (p ProviderRecord) ResolveAlias(name string) string {
	if resolved, ok := p.Models.Aliases[name]; ok {
		return resolved
	}
	return name
}

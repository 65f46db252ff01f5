package config

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// ValidationError collects every schema issue found in one Validate pass,
// so save_config can report all of them at once instead of stopping at the
// first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

var validProviderTypes = map[models.ProviderType]bool{
	models.ProviderOllama:     true,
	models.ProviderGoogle:     true,
	models.ProviderOpenAI:     true,
	models.ProviderDeepSeek:   true,
	models.ProviderAnthropic:  true,
	models.ProviderClaudeCode: true,
}

// Validate checks cfg against the documented schema (§6). It does not
// reject unknown top-level keys itself — yaml.Decoder.KnownFields(true)
// during decode already does that — but it does enforce the cross-field
// constraints decode alone can't.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var issues []string

	for name, rec := range cfg.Providers {
		if !validProviderTypes[rec.Type] {
			issues = append(issues, fmt.Sprintf("providers.%s.type must be one of ollama, google, openai, deepseek, anthropic, claude-code", name))
		}
		if strings.TrimSpace(rec.Models.Default) == "" {
			issues = append(issues, fmt.Sprintf("providers.%s.models.default is required", name))
		}
	}

	if cfg.DefaultSearchEngine != "" {
		if _, ok := cfg.SearchEngines[cfg.DefaultSearchEngine]; !ok {
			issues = append(issues, fmt.Sprintf("default_search_engine %q has no matching entry in search_engines", cfg.DefaultSearchEngine))
		}
	}

	if cfg.Chat.ContextQuota < 0 || cfg.Chat.ContextQuota > 1 {
		issues = append(issues, "chat.context_quota must be between 0 and 1")
	}
	if cfg.MaxCharsPerFile < 0 {
		issues = append(issues, "max_chars_per_file must be >= 0")
	}
	if cfg.Memory.Days < 0 {
		issues = append(issues, "memory.days must be >= 0")
	}

	for _, ref := range cfg.Subagents {
		if err := checkModelRef(cfg, ref); err != nil {
			issues = append(issues, fmt.Sprintf("subagents: %s", err))
		}
	}
	for _, ref := range cfg.Fallbacks {
		if err := checkModelRef(cfg, ref); err != nil {
			issues = append(issues, fmt.Sprintf("fallbacks: %s", err))
		}
	}

	if m := cfg.ChatClients.Matrix; m != nil {
		if strings.TrimSpace(m.Homeserver) == "" || strings.TrimSpace(m.UserID) == "" || strings.TrimSpace(m.Token) == "" {
			issues = append(issues, "chat_clients.matrix requires homeserver, user_id, and token")
		}
	}
	if d := cfg.ChatClients.Discord; d != nil {
		if strings.TrimSpace(d.BotToken) == "" {
			issues = append(issues, "chat_clients.discord requires bot_token")
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// checkModelRef validates a "provider/model" reference names a configured
// provider; it does not resolve aliases, since a fragment may legitimately
// reference a model the provider will add later in the same save.
func checkModelRef(cfg *Config, ref string) error {
	provider, _, ok := strings.Cut(ref, "/")
	if !ok {
		return fmt.Errorf("%q must be of the form provider/model", ref)
	}
	if _, ok := cfg.Providers[provider]; !ok {
		return fmt.Errorf("%q references unknown provider %q", ref, provider)
	}
	return nil
}

// Package config loads, validates, and atomically rewrites the YAML
// configuration file (§6): provider definitions, server settings,
// filesystem roots, search engines, the scheduler toggle, chat-platform
// credentials, and memory/subagent/fallback lists.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// Config is the top-level configuration document.
type Config struct {
	Providers           map[string]models.ProviderRecord `yaml:"providers"`
	Server              ServerConfig                     `yaml:"server"`
	AgentDir            string                           `yaml:"agent_dir"`
	Workspace           string                           `yaml:"workspace"`
	TrashDir            string                           `yaml:"trash_dir"`
	SearchEngines       map[string]SearchEngineConfig    `yaml:"search_engines"`
	DefaultSearchEngine string                           `yaml:"default_search_engine"`
	MaxCharsPerFile     int                              `yaml:"max_chars_per_file"`
	Scheduler           SchedulerConfig                  `yaml:"scheduler"`
	ChatClients         ChatClientsConfig                `yaml:"chat_clients"`
	Memory              MemoryConfig                     `yaml:"memory"`
	Chat                ChatConfig                       `yaml:"chat"`
	Subagents           []string                         `yaml:"subagents"`
	Fallbacks           []string                         `yaml:"fallbacks"`
	Vision              []string                         `yaml:"vision"`
	ImageGeneration     []string                         `yaml:"image_generation"`
	Avatar              string                           `yaml:"avatar"`
	GitHubToken         string                           `yaml:"github_token"`
}

// ServerConfig is the web/API server's own settings.
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	Token               string `yaml:"token"`
	Debug               bool   `yaml:"debug"`
	ShowEstimatedTokens bool   `yaml:"show_estimated_tokens"`
	LogAgentActions     bool   `yaml:"log_agent_actions"`
	ShowContext         bool   `yaml:"show_context"`
}

// SearchEngineConfig names one entry of the search_engines map.
type SearchEngineConfig struct {
	URL string `yaml:"url"`
}

// SchedulerConfig is `false` or `{enabled: true}` in the YAML; UnmarshalYAML
// below accepts either shape.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UnmarshalYAML accepts either a bare boolean (`scheduler: false`) or a
// mapping (`scheduler: {enabled: true}`).
func (s *SchedulerConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var enabled bool
		if err := value.Decode(&enabled); err != nil {
			return err
		}
		s.Enabled = enabled
		return nil
	}
	type plain SchedulerConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = SchedulerConfig(p)
	return nil
}

// MarshalYAML round-trips the false-or-mapping shape: an unset/disabled
// scheduler serializes back to the bare boolean form.
func (s SchedulerConfig) MarshalYAML() (any, error) {
	if !s.Enabled {
		return false, nil
	}
	return map[string]bool{"enabled": true}, nil
}

// ChatClientsConfig holds the per-platform ingress credentials.
type ChatClientsConfig struct {
	Matrix  *MatrixConfig  `yaml:"matrix,omitempty"`
	Discord *DiscordConfig `yaml:"discord,omitempty"`
}

// MatrixConfig carries the credentials and E2EE room list for the Matrix
// ingress (§4.10).
type MatrixConfig struct {
	Homeserver     string   `yaml:"homeserver"`
	UserID         string   `yaml:"user_id"`
	Token          string   `yaml:"token"`
	DeviceID       string   `yaml:"device_id,omitempty"`
	EncryptedRooms []string `yaml:"encrypted_rooms,omitempty"`
}

// DiscordConfig carries the bot credentials for the Discord ingress.
type DiscordConfig struct {
	BotToken      string `yaml:"bot_token"`
	CommandPrefix string `yaml:"command_prefix"`
}

// MemoryConfig bounds the append-only daily memory files.
type MemoryConfig struct {
	MaxCharsPerLine int `yaml:"max_chars_per_line"`
	Days            int `yaml:"days"`
	MaxTokens       int `yaml:"max_tokens"`
}

// ChatConfig holds chat-loop-wide tunables.
type ChatConfig struct {
	ContextQuota float64 `yaml:"context_quota"`
}

// Load reads, expands environment variables in, parses, defaults, and
// validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	cfg, err := decode(expanded)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(yamlText string) (*Config, error) {
	decoder := yaml.NewDecoder(strings.NewReader(yamlText))
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: expected a single YAML document")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.AgentDir == "" {
		cfg.AgentDir = "agent"
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "workspace"
	}
	if cfg.TrashDir == "" {
		cfg.TrashDir = "trash"
	}
	if cfg.MaxCharsPerFile == 0 {
		cfg.MaxCharsPerFile = 20000
	}
	if cfg.DefaultSearchEngine == "" && len(cfg.SearchEngines) == 1 {
		for id := range cfg.SearchEngines {
			cfg.DefaultSearchEngine = id
		}
	}
	if cfg.Memory.MaxCharsPerLine == 0 {
		cfg.Memory.MaxCharsPerLine = 500
	}
	if cfg.Memory.Days == 0 {
		cfg.Memory.Days = 7
	}
	if cfg.Memory.MaxTokens == 0 {
		cfg.Memory.MaxTokens = 4000
	}
	if cfg.Chat.ContextQuota == 0 {
		cfg.Chat.ContextQuota = 0.85
	}
	for name, rec := range cfg.Providers {
		rec.Name = name
		cfg.Providers[name] = rec
	}
}

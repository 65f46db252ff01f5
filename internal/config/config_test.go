package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
providers:
  local:
    type: ollama
    base_url: http://localhost:11434
    models:
      default: llama3
server:
  token: secret
`

func writeConfig(t *testing.T, yamlText string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlText), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Chat.ContextQuota != 0.85 {
		t.Fatalf("Chat.ContextQuota = %v, want default 0.85", cfg.Chat.ContextQuota)
	}
	if cfg.Providers["local"].Name != "local" {
		t.Fatalf("expected provider record Name to be backfilled from its map key")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, minimalYAML+"\nbogus_top_level_key: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load() to reject an unknown top-level key")
	}
}

func TestLoadRejectsInvalidProviderType(t *testing.T) {
	path := writeConfig(t, `
providers:
  local:
    type: carrier-pigeon
    models:
      default: llama3
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load() to reject an invalid provider type")
	}
}

func TestSaveFragmentDeepMerges(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	store := NewStore(path)

	if err := store.SaveFragment("server:\n  debug: true\n"); err != nil {
		t.Fatalf("SaveFragment() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after SaveFragment error = %v", err)
	}
	if !cfg.Server.Debug {
		t.Fatal("expected server.debug to be merged in")
	}
	if cfg.Server.Token != "secret" {
		t.Fatalf("expected server.token to survive the merge, got %q", cfg.Server.Token)
	}
}

func TestSaveFragmentRejectsInvalidResultAndLeavesFileUnchanged(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	store := NewStore(path)

	err = store.SaveFragment("default_search_engine: nonexistent\n")
	if err == nil {
		t.Fatal("expected SaveFragment() to reject a default_search_engine with no matching entry")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("expected on-disk config to be unchanged after a failed SaveFragment")
	}
}

func TestSaveFragmentRotatesBackups(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	store := NewStore(path)

	for i := 0; i < 3; i++ {
		if err := store.SaveFragment("max_chars_per_file: 1000\n"); err != nil {
			t.Fatalf("SaveFragment() iteration %d error = %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".bak.1"); err != nil {
		t.Fatalf("expected a .bak.1 file after repeated saves: %v", err)
	}
}

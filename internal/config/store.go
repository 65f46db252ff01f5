package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// maxBackups caps how many rotated copies save_config keeps next to the
// live file (config.yaml.bak.1 is the most recent, .bak.4 the oldest).
const maxBackups = 4

// Store is the on-disk config file that the save_config tool mutates: it
// deep-merges an incoming YAML fragment into the current document,
// validates the merged result, and only then commits it, keeping the
// previous versions as rotated backups.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore opens a Store bound to path. The file need not exist yet; the
// first SaveFragment call creates it.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// SaveFragment satisfies tools.ConfigStore. On validation failure the
// on-disk file is left untouched and the error carries every issue found.
func (s *Store) SaveFragment(yamlFragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentRaw, err := s.readRaw()
	if err != nil {
		return err
	}

	var fragment map[string]any
	if err := yaml.Unmarshal([]byte(yamlFragment), &fragment); err != nil {
		return fmt.Errorf("config: invalid yaml fragment: %w", err)
	}

	merged := mergeMaps(currentRaw, fragment)

	mergedYAML, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("config: re-serialize merged config: %w", err)
	}
	cfg, err := decode(string(mergedYAML))
	if err != nil {
		return err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}

	if err := s.rotateBackups(); err != nil {
		return fmt.Errorf("config: rotate backups: %w", err)
	}
	return s.writeAtomic(mergedYAML)
}

func (s *Store) readRaw() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse existing file: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func (s *Store) writeAtomic(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// rotateBackups shifts config.yaml.bak.N -> config.yaml.bak.N+1 (dropping
// anything beyond maxBackups) and copies the current live file into
// config.yaml.bak.1, so a bad save_config can be recovered from by hand.
func (s *Store) rotateBackups() error {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for n := maxBackups - 1; n >= 1; n-- {
		src := s.backupPath(n)
		dst := s.backupPath(n + 1)
		if _, err := os.Stat(src); err == nil {
			if err := os.Rename(src, dst); err != nil {
				return err
			}
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return os.WriteFile(s.backupPath(1), data, 0o600)
}

func (s *Store) backupPath(n int) string {
	return s.path + ".bak." + strconv.Itoa(n)
}

// mergeMaps recursively merges src into dst, with src's scalars and lists
// overwriting dst's and nested maps merging key by key.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				dst[key] = mergeMaps(existing, nested)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}

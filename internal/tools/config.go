package tools

import (
	"context"
	"fmt"
)

// ConfigStore is the narrow capability save_config needs: deep-merge a YAML
// fragment into the on-disk configuration, validate against the schema, and
// write atomically with backup rotation (§4.1, §6). The concrete
// implementation lives in internal/config.
type ConfigStore interface {
	SaveFragment(yamlFragment string) error
}

// SaveConfigTool deep-merges a YAML fragment into the on-disk config.
type SaveConfigTool struct {
	Store ConfigStore
}

func NewSaveConfigTool(store ConfigStore) *SaveConfigTool {
	return &SaveConfigTool{Store: store}
}

func (t *SaveConfigTool) Name() string        { return "save_config" }
func (t *SaveConfigTool) Tier() Tier          { return TierMain }
func (t *SaveConfigTool) Description() string {
	return "Deep-merge a YAML fragment into the on-disk configuration, validating the result."
}

func (t *SaveConfigTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"yaml": map[string]any{"type": "string"}},
		"required":   []string{"yaml"},
	}
}

func (t *SaveConfigTool) Run(ctx context.Context, args map[string]any) (string, error) {
	fragment, _ := args["yaml"].(string)
	if fragment == "" {
		return "error: yaml fragment is required", nil
	}
	if err := t.Store.SaveFragment(fragment); err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	return "config updated", nil
}

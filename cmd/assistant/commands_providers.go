package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/nexus-assistant/internal/config"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
)

func buildProvidersCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "providers",
		Short: "List and edit the configured LLM providers",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(
		buildProvidersListCmd(&configPath),
		buildProvidersAddCmd(&configPath),
	)
	return root
}

func buildProvidersListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers and their default model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			dispatcher := providers.NewDispatcher(providerOrder(cfg), cfg.Providers, nil)

			out := cmd.OutOrStdout()
			for _, name := range dispatcher.ProviderNames() {
				rec := cfg.Providers[name]
				fmt.Fprintf(out, "%s\ttype=%s\tdefault=%s\n", name, rec.Type, rec.Models.Default)
			}
			return nil
		},
	}
}

func buildProvidersAddCmd(configPath *string) *cobra.Command {
	var providerType, baseURL, apiKey, defaultModel string
	var numCtx int

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a provider entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			entry := map[string]any{
				"type":     providerType,
				"base_url": baseURL,
				"api_key":  apiKey,
				"num_ctx":  numCtx,
				"models": map[string]any{
					"default": defaultModel,
				},
			}
			fragment, err := yaml.Marshal(map[string]any{
				"providers": map[string]any{name: entry},
			})
			if err != nil {
				return fmt.Errorf("failed to build fragment: %w", err)
			}

			store := config.NewStore(*configPath)
			if err := store.SaveFragment(string(fragment)); err != nil {
				return fmt.Errorf("failed to save provider: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provider %q saved\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&providerType, "type", "", "provider type: anthropic, openai, deepseek, google, ollama, claude-code")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (or the claude CLI binary path for claude-code)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key")
	cmd.Flags().StringVar(&defaultModel, "default-model", "", "default model ID for this provider")
	cmd.Flags().IntVar(&numCtx, "num-ctx", 0, "context window size in tokens")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("default-model")
	return cmd
}

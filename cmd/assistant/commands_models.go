package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus-assistant/internal/config"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

func buildModelsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List the configured model catalog, optionally scoped to one provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			dispatcher := providers.NewDispatcher(providerOrder(cfg), cfg.Providers, nil)

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				catalog, ok := dispatcher.ModelsFor(args[0])
				if !ok {
					return fmt.Errorf("unknown provider %q", args[0])
				}
				fmt.Fprintln(out, formatCatalogLine(args[0], catalog))
				return nil
			}
			for _, name := range dispatcher.ProviderNames() {
				catalog, ok := dispatcher.ModelsFor(name)
				if !ok {
					continue
				}
				fmt.Fprintln(out, formatCatalogLine(name, catalog))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	return cmd
}

func formatCatalogLine(provider string, catalog models.ModelCatalog) string {
	list := catalog.List
	if len(list) == 0 {
		list = []string{catalog.Default}
	}
	return fmt.Sprintf("%s: %v (default: %s)", provider, list, catalog.Default)
}

// providerOrder derives a deterministic (alphabetical) scan order from the
// configured providers map; NewDispatcher uses it for Resolve's implicit
// default-provider scan and ProviderNames lists providers in this order.
func providerOrder(cfg *config.Config) []string {
	order := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		order = append(order, name)
	}
	sort.Strings(order)
	return order
}

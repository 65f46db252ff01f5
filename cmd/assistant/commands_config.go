package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus-assistant/internal/config"
)

func buildConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config OK: %s\n", configPath)
			fmt.Fprintf(out, "  providers: %d\n", len(cfg.Providers))
			fmt.Fprintf(out, "  agent_dir: %s\n", cfg.AgentDir)
			fmt.Fprintf(out, "  workspace: %s\n", cfg.Workspace)
			fmt.Fprintf(out, "  server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Fprintf(out, "  scheduler enabled: %v\n", cfg.Scheduler.Enabled)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	return cmd
}

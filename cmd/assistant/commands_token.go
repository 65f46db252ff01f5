package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus-assistant/internal/config"
)

func buildTokenCmd() *cobra.Command {
	var configPath string
	var regenerate bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Show, or regenerate, the bearer token that guards the HTTP/SSE façade",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if !regenerate {
				if cfg.Server.Token == "" {
					fmt.Fprintln(out, "no token configured; the HTTP/SSE façade is unauthenticated")
					return nil
				}
				fmt.Fprintln(out, cfg.Server.Token)
				return nil
			}

			token, err := generateToken()
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			store := config.NewStore(configPath)
			fragment := fmt.Sprintf("server:\n  token: %q\n", token)
			if err := store.SaveFragment(fragment); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "generate a new token and save it")
	return cmd
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

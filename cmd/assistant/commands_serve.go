package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus-assistant/internal/config"
)

func buildServeCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant engine: chat ingress, scheduler, and the HTTP/SSE façade",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	return cmd
}

// runServe loads configuration, wires every component, starts the chat
// adapters/scheduler/HTTP façade, and blocks until ctx is cancelled by a
// shutdown signal.
func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	slog.Info("starting assistant engine", "version", version, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	eng, err := buildEngine(ctx, cfg, configPath)
	if err != nil {
		return fmt.Errorf("failed to wire engine: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Both StartAll and httpapi.Start hand their listen loops off to their
	// own background goroutines and return immediately, so there is nothing
	// to race against ctx.Done() here beyond the two calls themselves.
	if err := eng.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start chat adapters: %w", err)
	}
	if err := eng.httpapi.Start(ctx); err != nil {
		return fmt.Errorf("failed to start http façade: %w", err)
	}
	if eng.scheduler != nil {
		eng.scheduler.Start()
	}

	slog.Info("assistant engine started", "http_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	<-ctx.Done()
	slog.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if eng.scheduler != nil {
		eng.scheduler.Stop()
	}
	if err := eng.channels.StopAll(shutdownCtx); err != nil {
		slog.Error("chat adapter shutdown failed", "error", err)
	}
	if err := eng.httpapi.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}

	slog.Info("assistant engine stopped gracefully")
	return nil
}

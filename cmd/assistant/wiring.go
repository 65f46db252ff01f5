package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/haasonsaas/nexus-assistant/internal/agent"
	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/channels"
	"github.com/haasonsaas/nexus-assistant/internal/channels/discord"
	"github.com/haasonsaas/nexus-assistant/internal/channels/matrix"
	"github.com/haasonsaas/nexus-assistant/internal/config"
	"github.com/haasonsaas/nexus-assistant/internal/httpapi"
	"github.com/haasonsaas/nexus-assistant/internal/memory"
	"github.com/haasonsaas/nexus-assistant/internal/pairing"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/internal/scheduler"
	"github.com/haasonsaas/nexus-assistant/internal/session"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// engine is every long-lived component buildEngine wires together, shared
// by the serve and chat commands.
type engine struct {
	cfg        *config.Config
	dispatcher *providers.Dispatcher
	registry   *tools.Registry
	sinks      *tools.SinkRegistry
	loop       *agent.Loop
	manager    *session.Manager
	pairing    *pairing.Store
	scheduler  *scheduler.Scheduler
	channels   *channels.Registry
	httpapi    *httpapi.Server
}

// buildAdapter constructs the provider.Adapter for one configured record;
// the provider Type field selects which of the five backend dialects to
// speak (§4.2).
func buildAdapter(ctx context.Context, rec models.ProviderRecord) (providers.Adapter, error) {
	switch rec.Type {
	case models.ProviderOllama:
		return providers.NewOllamaAdapter(rec.BaseURL), nil
	case models.ProviderAnthropic:
		return providers.NewAnthropicAdapter(rec.APIKey, rec.BaseURL), nil
	case models.ProviderOpenAI:
		return providers.NewOpenAIAdapter(rec.APIKey, rec.BaseURL), nil
	case models.ProviderDeepSeek:
		return providers.NewDeepSeekAdapter(rec.APIKey, rec.BaseURL), nil
	case models.ProviderClaudeCode:
		return providers.NewClaudeCodeAdapter(rec.BaseURL), nil
	case models.ProviderGoogle:
		return providers.NewGoogleAdapter(ctx, rec.APIKey)
	default:
		return nil, fmt.Errorf("unknown provider type %q", rec.Type)
	}
}

// loopSummarizer satisfies contextbudget.Summarizer by delegating to the
// sub-agent runner against the first configured subagent model, the same
// delegation path invoke_model uses (§4.6) — compaction is just another
// one-shot "ask a model to condense this" call.
type loopSummarizer struct {
	runner *agent.SubAgentRunner
	model  string
}

func (s *loopSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	if s.runner == nil {
		return "", fmt.Errorf("no sub-agent runner configured for compaction")
	}
	return s.runner.Run(ctx, s.model, prompt)
}

// debateSink bridges the tool executor's per-platform SinkRegistry to the
// single DebateSink interface the debate orchestrator wants, resolving by
// the surface threaded through each status-update call.
type debateSink struct {
	sinks *tools.SinkRegistry
}

func (d *debateSink) StatusUpdate(ctx context.Context, surface models.ChatSurface, message string) error {
	if !surface.Bound() {
		return nil
	}
	sink, ok := d.sinks.Get(surface.Platform)
	if !ok {
		return nil
	}
	return sink.StatusUpdate(ctx, surface, message)
}

// schedulerNotifier delivers a fired job's result to its recorded chat
// surface. When no surface was recorded, Notify sends nothing and returns
// nil; the result is not sent to authorized users.
type schedulerNotifier struct {
	channels *channels.Registry
	pairing  *pairing.Store
}

func (n *schedulerNotifier) Notify(ctx context.Context, target models.ChatSurface, content string) error {
	if !target.Bound() {
		return nil
	}
	outbound, ok := n.channels.GetOutbound(target.Platform)
	if !ok {
		return fmt.Errorf("no outbound adapter registered for platform %q", target.Platform)
	}
	return outbound.Send(ctx, target.RoomID, content)
}

// buildEngine wires every component (§2's C1-C12) from a loaded config: the
// dispatcher, the tool registry, the tool-calling loop, the Session
// Manager, the scheduler, the chat-platform adapters, and the HTTP/SSE
// façade. Chat-platform adapters are constructed but not started; callers
// decide whether to call registry.StartAll (serve) or skip it (chat, a
// local-only REPL).
func buildEngine(ctx context.Context, cfg *config.Config, configPath string) (*engine, error) {
	order := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		order = append(order, name)
	}
	adapters := make(map[string]providers.Adapter, len(cfg.Providers))
	for name, rec := range cfg.Providers {
		rec.Name = name
		adapter, err := buildAdapter(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		adapters[name] = adapter
		cfg.Providers[name] = rec
	}
	dispatcher := providers.NewDispatcher(order, cfg.Providers, adapters)

	registry := tools.NewRegistry()
	sinks := tools.NewSinkRegistry()
	cancelRegistry := cancel.New()
	loop := agent.NewLoop(dispatcher, nil, cancelRegistry, cfg.Fallbacks)

	subagentRunner := agent.NewSubAgentRunner(loop, registry, cfg.Workspace)
	if len(cfg.Subagents) > 0 {
		loop.Summarizer = &loopSummarizer{runner: subagentRunner, model: cfg.Subagents[0]}
	}
	debateOrchestrator := agent.NewDebateOrchestrator(subagentRunner, cancelRegistry, &debateSink{sinks: sinks}, cfg.Workspace)

	pairingStore := pairing.NewStore(cfg.AgentDir)
	configStore := config.NewStore(configPath)

	engines := make(map[string]tools.SearchEngine, len(cfg.SearchEngines))
	for id, e := range cfg.SearchEngines {
		engines[id] = tools.SearchEngine{ID: id, URL: e.URL}
	}

	registry.Register(tools.NewExecTool(cfg.Workspace, cfg.GitHubToken))
	registry.Register(tools.NewWebSearchTool(engines, cfg.DefaultSearchEngine))
	registry.Register(tools.NewCheckURLTool())
	registry.Register(tools.NewReadURLTool())
	registry.Register(tools.NewSaveConfigTool(configStore))
	registry.Register(tools.NewSendImageTool(sinks))
	registry.Register(tools.NewStatusUpdateTool(sinks))
	registry.Register(tools.NewInvokeModelTool(subagentRunner.Run))
	registry.Register(tools.NewDebateTool(debateOrchestrator.Run))

	channelRegistry := channels.NewRegistry()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		autonomousRunner := agent.NewAutonomousRunner(loop, registry, dispatcher.DefaultModelRef())
		notifier := &schedulerNotifier{channels: channelRegistry, pairing: pairingStore}
		s, err := scheduler.New(filepath.Join(cfg.Workspace, "..", "schedules.json"), autonomousRunner, notifier)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
		sched = s
		registry.Register(tools.NewScheduleTool(sched))
	}

	var memoryLog *memory.Logger
	if cfg.Memory.Days > 0 {
		memoryLog = memory.NewLogger(filepath.Join(cfg.AgentDir, "memory"), cfg.Memory.MaxCharsPerLine)
	}

	var schedulerForSession tools.Scheduler
	if sched != nil {
		schedulerForSession = sched
	}
	manager := session.NewManager(cfg, dispatcher, loop, registry, pairingStore, schedulerForSession, memoryLog)

	if cfg.ChatClients.Matrix != nil {
		adapter, err := matrix.NewAdapter(matrix.Config{
			Homeserver:     cfg.ChatClients.Matrix.Homeserver,
			UserID:         cfg.ChatClients.Matrix.UserID,
			AccessToken:    cfg.ChatClients.Matrix.Token,
			DeviceID:       cfg.ChatClients.Matrix.DeviceID,
			EncryptedRooms: cfg.ChatClients.Matrix.EncryptedRooms,
		}, pairingStore, manager)
		if err != nil {
			return nil, fmt.Errorf("matrix adapter: %w", err)
		}
		channelRegistry.Register(adapter)
		sinks.Register("matrix", adapter)
	}
	if cfg.ChatClients.Discord != nil {
		adapter, err := discord.NewAdapter(discord.Config{
			BotToken:      cfg.ChatClients.Discord.BotToken,
			CommandPrefix: cfg.ChatClients.Discord.CommandPrefix,
			Logger:        slog.Default(),
		}, pairingStore, manager)
		if err != nil {
			return nil, fmt.Errorf("discord adapter: %w", err)
		}
		channelRegistry.Register(adapter)
		sinks.Register("discord", adapter)
	}

	httpServer := httpapi.NewServer(httpapi.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Token:   cfg.Server.Token,
		Manager: manager,
		Pairing: pairingStore,
	})

	return &engine{
		cfg:        cfg,
		dispatcher: dispatcher,
		registry:   registry,
		sinks:      sinks,
		loop:       loop,
		manager:    manager,
		pairing:    pairingStore,
		scheduler:  sched,
		channels:   channelRegistry,
		httpapi:    httpServer,
	}, nil
}

// Package session implements the Session Manager (§4.8): lazy per-(platform,
// user) conversation state, ordinary-turn delegation to the tool-calling
// loop, and the slash-command surface (/model, /models, /new, /schedules,
// /schedule remove, /auth, /stop, /abort).
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus-assistant/internal/agent"
	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/channels"
	"github.com/haasonsaas/nexus-assistant/internal/config"
	"github.com/haasonsaas/nexus-assistant/internal/memory"
	"github.com/haasonsaas/nexus-assistant/internal/pairing"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// TurnResult is the full outcome of one HandleMessage call — the richer
// shape the HTTP/SSE façade needs (§4.12); Route, used by the chat-platform
// adapters, exposes only its Content.
type TurnResult struct {
	Content     string
	Thinking    string
	NewMessages []models.Message
	Switch      *agent.SwitchInfo
	Clear       bool
	Cancelled   bool
	SentImage   bool
}

// Manager owns the live session set and dispatches each inbound message to
// either the slash-command handler or the tool-calling loop.
type Manager struct {
	cfg        *config.Config
	dispatcher *providers.Dispatcher
	loop       *agent.Loop
	registry   *tools.Registry
	pairing    *pairing.Store
	scheduler  tools.Scheduler
	memoryLog  *memory.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*models.Session
}

// NewManager wires a Manager from its already-constructed dependencies; all
// of config, the dispatcher, the loop, and the tool registry are required.
// scheduler and memoryLog may be nil (the /schedules family errors cleanly,
// and no memory excerpt is added to the prompt).
func NewManager(cfg *config.Config, dispatcher *providers.Dispatcher, loop *agent.Loop, registry *tools.Registry, pairingStore *pairing.Store, scheduler tools.Scheduler, memoryLog *memory.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		loop:       loop,
		registry:   registry,
		pairing:    pairingStore,
		scheduler:  scheduler,
		memoryLog:  memoryLog,
		now:        time.Now,
		sessions:   make(map[string]*models.Session),
	}
}

// Route satisfies channels.Router: a chat-platform adapter has already
// gated authorization, so this only binds the message into a session and
// returns the text to send back.
func (m *Manager) Route(ctx context.Context, msg channels.IncomingMessage) (string, error) {
	result, err := m.HandleMessage(ctx, msg.Platform, msg.UserID, msg.RoomID, msg.Text, msg.Images, nil)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// HandleMessage is the full-fidelity entry point: it binds or creates the
// session for (platform, userID), updates its active room/channel, and
// either executes a slash command synchronously or runs the tool-calling
// loop. obs, if non-nil, receives streaming deltas as the loop runs
// (§4.12); it is nil for chat-platform turns, set by the HTTP façade.
func (m *Manager) HandleMessage(ctx context.Context, platform, userID, roomID, text string, images []models.Image, obs agent.Observer) (TurnResult, error) {
	sess := m.sessionFor(platform, userID)

	m.mu.Lock()
	sess.Surface.RoomID = roomID
	m.mu.Unlock()

	if cmd, ok := parseCommand(text); ok {
		return m.runCommand(ctx, sess, cmd)
	}

	return m.runTurn(ctx, sess, text, images, obs)
}

// sessionFor returns the existing session for (platform, userID), creating
// one lazily on first contact.
func (m *Manager) sessionFor(platform, userID string) *models.Session {
	key := sessionKey(platform, userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[key]; ok {
		return sess
	}

	sess := models.NewSession(uuid.NewString(), platform, userID)
	sess.Model = m.dispatcher.DefaultModelRef()
	sess.SystemPrompt = buildSystemPrompt(m.cfg, m.now(), m.memoryExcerpt(platform, userID))
	m.sessions[key] = sess
	return sess
}

func sessionKey(platform, userID string) string {
	return platform + "\x00" + userID
}

// capMemoryTokens keeps the most recent lines whose combined length (at the
// same len/3 heuristic models.Message.EstimatedTokens uses) stays within
// maxTokens; a non-positive maxTokens disables the cap.
func capMemoryTokens(lines []string, maxTokens int) []string {
	if maxTokens <= 0 || len(lines) == 0 {
		return lines
	}
	total := 0
	cut := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		total += len(lines[i]) / 3
		if total > maxTokens {
			cut = i + 1
			break
		}
		cut = i
	}
	return lines[cut:]
}

func (m *Manager) memoryExcerpt(platform, userID string) []string {
	if m.memoryLog == nil || m.cfg == nil || m.cfg.Memory.Days <= 0 {
		return nil
	}
	const maxLines = 20
	lines, err := m.memoryLog.ReadRecentAt(m.now(), platform, userID, m.cfg.Memory.Days, maxLines)
	if err != nil {
		return nil
	}
	return capMemoryTokens(lines, m.cfg.Memory.MaxTokens)
}

// runTurn delegates an ordinary chat message to the tool-calling loop.
func (m *Manager) runTurn(ctx context.Context, sess *models.Session, text string, images []models.Image, obs agent.Observer) (TurnResult, error) {
	ctx = tools.WithSurface(ctx, sess.Surface)

	before := len(sess.Messages)
	sess.Append(models.Message{Role: models.RoleUser, Content: text, Images: images, CreatedAt: m.now()})
	m.logMemory(sess, sess.Messages[before])

	toolset := &agent.ToolSet{Registry: m.registry, Tier: tools.TierMain}
	result, err := m.loop.Run(ctx, sess, toolset, agent.LoopOptions{
		RoundCap:  agent.DefaultRoundCap,
		CancelKey: sessionKey(sess.Platform, sess.UserID),
		Observer:  obs,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("session: %w", err)
	}

	newMessages := append([]models.Message(nil), sess.Messages[before+1:]...)
	for _, msg := range newMessages {
		m.logMemory(sess, msg)
	}

	return TurnResult{
		Content:     result.Content,
		Thinking:    result.Thinking,
		NewMessages: newMessages,
		Switch:      result.Switch,
		Cancelled:   result.Cancelled,
		SentImage:   result.SentImage,
	}, nil
}

func (m *Manager) logMemory(sess *models.Session, msg models.Message) {
	if m.memoryLog == nil {
		return
	}
	_ = m.memoryLog.Append(sess.Platform, sess.UserID, msg)
}

// requestCancel records level for (platform, userID) on the loop's shared
// cancellation registry; used by the /stop and /abort slash commands.
func (m *Manager) requestCancel(platform, userID string, level cancel.Level) {
	if m.loop.Cancel != nil {
		m.loop.Cancel.Set(platform, userID, level)
	}
}

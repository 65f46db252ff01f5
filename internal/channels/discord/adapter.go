// Package discord implements the Discord chat-platform ingress (§4.10):
// a long-lived gateway session, the shared authorization handshake,
// per-user session mapping, image-pending/caption flow, typing-indicator
// re-assertion, and 2000-char message chunking.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/nexus-assistant/internal/channels"
	"github.com/haasonsaas/nexus-assistant/internal/pairing"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// discordSession is the subset of *discordgo.Session the adapter calls,
// narrowed so tests can substitute a fake gateway.
type discordSession interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	AddHandler(handler interface{}) func()
}

// Config holds the settings for one Discord ingress connection, built from
// the config.yaml chat_clients.discord block (§6).
type Config struct {
	// BotToken authenticates the gateway connection (required).
	BotToken string

	// CommandPrefix is recognized ahead of the slash-command surface the
	// session manager parses (defaults to "!").
	CommandPrefix string

	Logger *slog.Logger
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return channels.ErrConfig("bot_token is required", nil)
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = "!"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

const typingReassertInterval = 8 * time.Second // Discord's own indicator lasts ~10s

// Adapter implements channels.FullAdapter and tools.ChatSink for Discord.
type Adapter struct {
	config  Config
	session discordSession
	logger  *slog.Logger
	metrics *channels.Metrics
	chunker *channels.MessageChunker

	pairing *pairing.Store
	router  channels.Router

	messages chan *channels.IncomingMessage

	mu            sync.Mutex
	activeChannel map[string]string
	pendingImages map[string][]models.Image
	typingStop    map[string]chan struct{}

	botUserID string
	startedAt time.Time
}

// NewAdapter constructs a Discord adapter around a real gateway session.
func NewAdapter(cfg Config, store *pairing.Store, router channels.Router) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return newAdapter(cfg, session, store, router), nil
}

// newAdapter wires a pre-built session, letting tests inject a fake.
func newAdapter(cfg Config, session discordSession, store *pairing.Store, router channels.Router) *Adapter {
	return &Adapter{
		config:        cfg,
		session:       session,
		logger:        cfg.Logger.With("adapter", "discord"),
		metrics:       channels.NewMetrics("discord"),
		chunker:       channels.NewMessageChunker(channels.DiscordMaxChunk),
		pairing:       store,
		router:        router,
		messages:      make(chan *channels.IncomingMessage, 100),
		activeChannel: make(map[string]string),
		pendingImages: make(map[string][]models.Image),
		typingStop:    make(map[string]chan struct{}),
	}
}

func (a *Adapter) Platform() string { return "discord" }

func (a *Adapter) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.session.AddHandler(func(s *discordgo.Session, evt *discordgo.MessageCreate) {
		a.botUserID = s.State.User.ID
		a.handleMessage(ctx, evt.Message)
	})
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	a.metrics.RecordConnectionOpened()
	a.logger.Info("discord adapter started")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	for roomID, stop := range a.typingStop {
		close(stop)
		delete(a.typingStop, roomID)
	}
	a.mu.Unlock()
	err := a.session.Close()
	a.metrics.RecordConnectionClosed()
	return err
}

func (a *Adapter) Messages() <-chan *channels.IncomingMessage { return a.messages }

// Send delivers text to a channel, chunking at Discord's 2000-char limit
// (§4.10) and re-asserting the typing indicator once after all chunks
// are sent.
func (a *Adapter) Send(ctx context.Context, channelID, text string) error {
	start := time.Now()
	for _, chunk := range a.chunker.Chunk(text) {
		if _, err := a.session.ChannelMessageSend(channelID, chunk); err != nil {
			a.metrics.RecordError(channels.ErrCodeInternal)
			return channels.ErrInternal(fmt.Sprintf("send message to %s", channelID), err)
		}
	}
	a.metrics.RecordMessageSent()
	a.metrics.RecordSendLatency(time.Since(start))
	a.setTyping(channelID, true)
	return nil
}

// SendImage implements tools.ChatSink.
func (a *Adapter) SendImage(ctx context.Context, surface models.ChatSurface, path, caption string) error {
	data, mimeType, err := readFileWithMimeType(path)
	if err != nil {
		return err
	}
	_, err = a.session.ChannelMessageSendComplex(surface.RoomID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{{
			Name:        filenameForMime(mimeType),
			ContentType: mimeType,
			Reader:      newByteReader(data),
		}},
	})
	return err
}

// StatusUpdate implements tools.ChatSink.
func (a *Adapter) StatusUpdate(ctx context.Context, surface models.ChatSurface, message string) error {
	return a.Send(ctx, surface.RoomID, message)
}

func (a *Adapter) Status() channels.Status {
	return channels.Status{Connected: true, LastPing: time.Now().Unix()}
}

func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	return channels.HealthStatus{Healthy: true, LastCheck: time.Now(), Latency: time.Since(a.startedAt)}
}

func (a *Adapter) Metrics() channels.MetricsSnapshot { return a.metrics.Snapshot() }

func (a *Adapter) handleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg.Author == nil || msg.Author.Bot || msg.Author.ID == a.botUserID {
		return
	}

	userID := msg.Author.ID
	channelID := msg.ChannelID
	a.mu.Lock()
	a.activeChannel[userID] = channelID
	a.mu.Unlock()
	a.setTyping(channelID, true)
	a.metrics.RecordMessageReceived()

	authorized, err := a.pairing.IsAuthorized("discord", userID)
	if err != nil {
		a.logger.Error("authorization check failed", "error", err)
		return
	}
	if !authorized {
		a.handleUnauthorized(ctx, channelID, userID, msg.Content)
		return
	}

	if len(msg.Attachments) > 0 && strings.TrimSpace(msg.Content) == "" {
		a.handlePendingImages(ctx, channelID, userID, msg.Attachments)
		return
	}

	images := a.popPendingImages(userID)
	incoming := channels.IncomingMessage{
		Platform:   "discord",
		RoomID:     channelID,
		UserID:     userID,
		Text:       msg.Content,
		Images:     images,
		ReceivedAt: time.Now(),
	}

	select {
	case a.messages <- &incoming:
	default:
		a.logger.Warn("message channel full, dropping message", "message_id", msg.ID)
	}

	if a.router == nil {
		return
	}
	reply, err := a.router.Route(ctx, incoming)
	if err != nil {
		a.logger.Error("route message", "error", err)
		reply = fmt.Sprintf("error: %v", err)
	}
	if reply != "" {
		if err := a.Send(ctx, channelID, reply); err != nil {
			a.logger.Error("send reply", "error", err)
		}
	}
}

func (a *Adapter) handleUnauthorized(ctx context.Context, channelID, userID, text string) {
	if code, ok := parseAuthCommand(text, a.config.CommandPrefix); ok {
		if _, err := a.pairing.Redeem(code); err != nil {
			_ = a.Send(ctx, channelID, fmt.Sprintf("that code is invalid or expired: %v", err))
			return
		}
		_ = a.Send(ctx, channelID, "authorized — you can chat normally now.")
		return
	}

	code, err := a.pairing.RequestCode("discord", userID)
	if err != nil {
		a.logger.Error("request pairing code", "error", err)
		return
	}
	_ = a.Send(ctx, channelID, fmt.Sprintf("you're not authorized yet. Reply with /auth %s (valid 30 minutes) to link this identity.", code))
}

func (a *Adapter) handlePendingImages(ctx context.Context, channelID, userID string, attachments []*discordgo.MessageAttachment) {
	for _, att := range attachments {
		data, mimeType, err := downloadAttachment(att.URL)
		if err != nil {
			a.logger.Error("download attachment", "error", err)
			continue
		}
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		a.mu.Lock()
		a.pendingImages[userID] = append(a.pendingImages[userID], models.Image{MimeType: mimeType, Data: data})
		a.mu.Unlock()
	}
	_ = a.Send(ctx, channelID, "got the image — what would you like me to do with it?")
}

func (a *Adapter) popPendingImages(userID string) []models.Image {
	a.mu.Lock()
	defer a.mu.Unlock()
	images := a.pendingImages[userID]
	delete(a.pendingImages, userID)
	return images
}

func (a *Adapter) setTyping(channelID string, on bool) {
	a.mu.Lock()
	if stop, exists := a.typingStop[channelID]; exists {
		close(stop)
		delete(a.typingStop, channelID)
	}
	a.mu.Unlock()

	if !on {
		return
	}
	_ = a.session.ChannelTyping(channelID)

	stop := make(chan struct{})
	a.mu.Lock()
	a.typingStop[channelID] = stop
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(typingReassertInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = a.session.ChannelTyping(channelID)
			}
		}
	}()
}

func parseAuthCommand(text, prefix string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", false
	}
	cmd := strings.TrimPrefix(strings.TrimPrefix(fields[0], prefix), "/")
	if !strings.EqualFold(cmd, "auth") {
		return "", false
	}
	return fields[1], true
}

func downloadAttachment(url string) ([]byte, string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data := make([]byte, 0, resp.ContentLength)
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return data, http.DetectContentType(data), nil
}

func filenameForMime(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "image.png"
	case "image/gif":
		return "image.gif"
	default:
		return "image.jpg"
	}
}

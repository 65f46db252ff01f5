// Package matrix implements the Matrix chat-platform ingress (§4.10):
// long-lived sync client, authorization handshake, per-user session
// mapping, image-pending/caption flow, typing-indicator re-assertion,
// and end-to-end-encrypted room support.
package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/attachment"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	_ "modernc.org/sqlite" // registers the "sqlite" driver cryptohelper's store opens

	"github.com/haasonsaas/nexus-assistant/internal/channels"
	"github.com/haasonsaas/nexus-assistant/internal/pairing"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

const typingReassertInterval = 15 * time.Second

// Adapter implements channels.FullAdapter and tools.ChatSink for Matrix.
type Adapter struct {
	config  *Config
	client  *mautrix.Client
	crypto  *cryptohelper.CryptoHelper
	logger  *slog.Logger
	metrics *channels.Metrics

	pairing *pairing.Store
	router  channels.Router

	messages chan *channels.IncomingMessage

	mu            sync.Mutex
	activeRoom    map[string]string          // userID -> current room ID
	pendingImages map[string][]models.Image  // userID -> images awaiting a caption
	typingStop    map[string]chan struct{}   // roomID -> stop signal for the reassert loop

	running bool
	stopCh  chan struct{}
}

// NewAdapter constructs a Matrix adapter. router delivers routed chat turns
// to the session manager; store is the shared authorization store (§4.10).
func NewAdapter(cfg Config, store *pairing.Store, router channels.Router) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}
	if cfg.DeviceID != "" {
		client.DeviceID = id.DeviceID(cfg.DeviceID)
	}

	dbPath := cfg.StoreDir + "/crypto.db"
	helper, err := cryptohelper.NewCryptoHelper(client, []byte(cfg.PickleKey), dbPath)
	if err != nil {
		return nil, fmt.Errorf("init crypto store: %w", err)
	}

	a := &Adapter{
		config:        &cfg,
		client:        client,
		crypto:        helper,
		logger:        cfg.Logger.With("adapter", "matrix"),
		metrics:       channels.NewMetrics("matrix"),
		pairing:       store,
		router:        router,
		messages:      make(chan *channels.IncomingMessage, 100),
		activeRoom:    make(map[string]string),
		pendingImages: make(map[string][]models.Image),
		typingStop:    make(map[string]chan struct{}),
		stopCh:        make(chan struct{}),
	}
	return a, nil
}

func (a *Adapter) Platform() string { return "matrix" }

// Start begins the sync loop. Crypto init happens here so Start can return
// a wired error instead of failing silently inside NewAdapter.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	if err := a.crypto.Init(ctx); err != nil {
		return fmt.Errorf("start crypto helper: %w", err)
	}
	a.client.Crypto = a.crypto

	syncer := a.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, a.handleMessage)
	syncer.OnEventType(event.EventEncrypted, a.handleUndecryptable)
	syncer.OnEventType(event.StateMember, a.handleMemberEvent)

	go a.syncLoop(ctx)
	a.metrics.RecordConnectionOpened()
	a.logger.Info("matrix adapter started", "homeserver", a.config.Homeserver, "user_id", a.config.UserID)
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	close(a.stopCh)
	a.mu.Unlock()

	a.client.StopSync()
	if a.crypto != nil {
		_ = a.crypto.Close()
	}
	a.metrics.RecordConnectionClosed()
	a.logger.Info("matrix adapter stopped")
	return nil
}

func (a *Adapter) Messages() <-chan *channels.IncomingMessage { return a.messages }

// Send delivers text to a room, emitting both the plain body and the
// org.matrix.custom.html formatted body when markdown is present (§4.10).
func (a *Adapter) Send(ctx context.Context, roomID, text string) error {
	start := time.Now()
	content := &event.MessageEventContent{MsgType: event.MsgText, Body: text}
	if html, ok := markdownToHTML(text); ok {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}

	if _, err := a.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content); err != nil {
		a.metrics.RecordError(channels.ErrCodeInternal)
		return channels.ErrInternal(fmt.Sprintf("send message to %s", roomID), err)
	}
	a.metrics.RecordMessageSent()
	a.metrics.RecordSendLatency(time.Since(start))

	// Platforms clear the typing indicator on send; re-assert immediately.
	a.setTyping(ctx, roomID, true)
	return nil
}

// SendImage implements tools.ChatSink for an image generated or fetched by
// a tool call. Encrypted rooms get an m.room.encrypted file upload.
func (a *Adapter) SendImage(ctx context.Context, surface models.ChatSurface, path, caption string) error {
	data, mimeType, err := readFileWithMimeType(path)
	if err != nil {
		return err
	}
	roomID := id.RoomID(surface.RoomID)

	content := &event.MessageEventContent{MsgType: event.MsgImage, Body: caption}
	if content.Body == "" {
		content.Body = "image"
	}

	if a.config.isEncryptedRoom(surface.RoomID) {
		file := attachment.NewEncryptedFile()
		encrypted := file.Encrypt(data)
		mxc, err := a.client.UploadBytes(ctx, encrypted, "application/octet-stream")
		if err != nil {
			return channels.ErrInternal("upload encrypted image", err)
		}
		content.File = &event.EncryptedFileInfo{
			EncryptedFile: *file,
			URL:           mxc.ContentURI.CUString(),
		}
	} else {
		mxc, err := a.client.UploadBytes(ctx, data, mimeType)
		if err != nil {
			return channels.ErrInternal("upload image", err)
		}
		content.URL = mxc.ContentURI.CUString()
	}

	_, err = a.client.SendMessageEvent(ctx, roomID, event.EventMessage, content)
	return err
}

// StatusUpdate implements tools.ChatSink: a mid-flight status line,
// re-asserting the typing indicator afterward.
func (a *Adapter) StatusUpdate(ctx context.Context, surface models.ChatSurface, message string) error {
	return a.Send(ctx, surface.RoomID, message)
}

func (a *Adapter) Status() channels.Status {
	_, err := a.client.Whoami(context.Background())
	return channels.Status{Connected: err == nil, LastPing: time.Now().Unix()}
}

func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	_, err := a.client.Whoami(ctx)
	status := channels.HealthStatus{Latency: time.Since(start), LastCheck: time.Now()}
	if err != nil {
		status.Message = err.Error()
		return status
	}
	status.Healthy = true
	return status
}

func (a *Adapter) Metrics() channels.MetricsSnapshot { return a.metrics.Snapshot() }

func (a *Adapter) syncLoop(ctx context.Context) {
	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			if err := a.client.SyncWithContext(ctx); err != nil {
				a.logger.Error("sync error", "error", err)
				a.metrics.RecordReconnectAttempt()
				select {
				case <-time.After(5 * time.Second):
				case <-a.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleMessage is invoked for both plain and (after transparent
// decryption by cryptohelper) encrypted m.room.message events.
func (a *Adapter) handleMessage(ctx context.Context, evt *event.Event) {
	if string(evt.Sender) == a.config.UserID {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	userID := string(evt.Sender)
	roomID := string(evt.RoomID)
	a.setActiveRoom(userID, roomID)
	a.setTyping(ctx, roomID, true)
	a.metrics.RecordMessageReceived()

	authorized, err := a.pairing.IsAuthorized("matrix", userID)
	if err != nil {
		a.logger.Error("authorization check failed", "error", err)
		return
	}
	if !authorized {
		a.handleUnauthorized(ctx, roomID, userID, content)
		return
	}

	switch content.MsgType {
	case event.MsgImage:
		a.handlePendingImage(ctx, roomID, userID, evt, content)
		return
	case event.MsgText, event.MsgNotice:
		// falls through to routing below
	default:
		return
	}

	images := a.popPendingImages(userID)
	msg := channels.IncomingMessage{
		Platform:   "matrix",
		RoomID:     roomID,
		UserID:     userID,
		Text:       content.Body,
		Images:     images,
		ReceivedAt: time.UnixMilli(evt.Timestamp),
	}

	select {
	case a.messages <- &msg:
	default:
		a.logger.Warn("message channel full, dropping message", "event_id", evt.ID)
	}

	if a.router == nil {
		return
	}
	reply, err := a.router.Route(ctx, msg)
	if err != nil {
		a.logger.Error("route message", "error", err)
		reply = fmt.Sprintf("error: %v", err)
	}
	if reply != "" {
		if err := a.Send(ctx, roomID, reply); err != nil {
			a.logger.Error("send reply", "error", err)
		}
	}
}

// handleUnauthorized issues or re-sends the pending pairing code, and
// handles an inline "/auth <code>" redemption attempt (§4.10 allows
// redemption via the web UI or a slash-command; bootstrapping an
// unauthorized platform identity happens right here).
func (a *Adapter) handleUnauthorized(ctx context.Context, roomID, userID string, content *event.MessageEventContent) {
	if code, ok := parseAuthCommand(content.Body); ok {
		if _, err := a.pairing.Redeem(code); err != nil {
			_ = a.Send(ctx, roomID, fmt.Sprintf("that code is invalid or expired: %v", err))
			return
		}
		_ = a.Send(ctx, roomID, "authorized — you can chat normally now.")
		return
	}

	code, err := a.pairing.RequestCode("matrix", userID)
	if err != nil {
		a.logger.Error("request pairing code", "error", err)
		return
	}
	_ = a.Send(ctx, roomID, fmt.Sprintf("you're not authorized yet. Reply with /auth %s (valid 30 minutes) to link this identity.", code))
}

// handlePendingImage buffers an image-only message until the user's next
// text message, per §4.10's image-attach semantics.
func (a *Adapter) handlePendingImage(ctx context.Context, roomID, userID string, evt *event.Event, content *event.MessageEventContent) {
	data, mimeType, err := a.downloadImage(ctx, evt, content)
	if err != nil {
		a.logger.Error("download image", "error", err)
		return
	}

	a.mu.Lock()
	a.pendingImages[userID] = append(a.pendingImages[userID], models.Image{MimeType: mimeType, Data: data})
	a.mu.Unlock()

	_ = a.Send(ctx, roomID, "got the image — what would you like me to do with it?")
}

// downloadImage fetches and, for encrypted rooms, decrypts an m.image
// attachment, requiring a magic-byte sniff of the result to report an
// image/* type before it's forwarded anywhere; the sniffed type is returned
// and the declared MIME type is not compared (§4.10).
func (a *Adapter) downloadImage(ctx context.Context, evt *event.Event, content *event.MessageEventContent) ([]byte, string, error) {
	var data []byte
	var err error

	if content.File != nil {
		data, err = a.client.DownloadBytes(ctx, content.File.URL.ParseOrIgnore())
		if err != nil {
			return nil, "", fmt.Errorf("download encrypted media: %w", err)
		}
		data = content.File.Decrypt(data)
	} else {
		data, err = a.client.DownloadBytes(ctx, content.URL.ParseOrIgnore())
		if err != nil {
			return nil, "", fmt.Errorf("download media: %w", err)
		}
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("decrypted content failed the image sniff check: %s", mimeType)
	}
	return data, mimeType, nil
}

// handleUndecryptable fires when cryptohelper could not decrypt an
// incoming m.room.encrypted event; it asks for the missing room key and
// tells the user (§4.10).
func (a *Adapter) handleUndecryptable(ctx context.Context, evt *event.Event) {
	a.logger.Warn("undecryptable event, requesting room key", "room_id", evt.RoomID, "event_id", evt.ID)
	if a.crypto != nil {
		_ = a.crypto.Machine().SendRoomKeyRequest(ctx, evt.RoomID, nil, "", nil)
	}
	_ = a.Send(ctx, string(evt.RoomID), "I'm missing the room key for that message — requested it, try again in a moment.")
}

func (a *Adapter) handleMemberEvent(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok || content.Membership != event.MembershipInvite || evt.GetStateKey() != a.config.UserID {
		return
	}
	if _, err := a.client.JoinRoom(ctx, string(evt.RoomID), nil); err != nil {
		a.logger.Error("failed to join room", "room_id", evt.RoomID, "error", err)
	}
}

func (a *Adapter) setActiveRoom(userID, roomID string) {
	a.mu.Lock()
	a.activeRoom[userID] = roomID
	a.mu.Unlock()
}

func (a *Adapter) popPendingImages(userID string) []models.Image {
	a.mu.Lock()
	defer a.mu.Unlock()
	images := a.pendingImages[userID]
	delete(a.pendingImages, userID)
	return images
}

// setTyping sets the typing indicator and, while on, re-asserts it every
// 15s to cover the homeserver-side TTL (§4.10). Calling with on=false
// (not currently exercised by any caller here, kept for symmetry with the
// Discord adapter's lifecycle) stops the loop and clears the indicator.
func (a *Adapter) setTyping(ctx context.Context, roomID string, on bool) {
	a.mu.Lock()
	if stop, exists := a.typingStop[roomID]; exists {
		close(stop)
		delete(a.typingStop, roomID)
	}
	a.mu.Unlock()

	if !on {
		_, _ = a.client.UserTyping(ctx, id.RoomID(roomID), false, 0)
		return
	}

	stop := make(chan struct{})
	a.mu.Lock()
	a.typingStop[roomID] = stop
	a.mu.Unlock()

	_, _ = a.client.UserTyping(ctx, id.RoomID(roomID), true, typingReassertInterval+5*time.Second)
	go func() {
		ticker := time.NewTicker(typingReassertInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = a.client.UserTyping(ctx, id.RoomID(roomID), true, typingReassertInterval+5*time.Second)
			}
		}
	}()
}

// parseAuthCommand recognizes "/auth CODE" (case-insensitive command,
// exact-case code).
func parseAuthCommand(body string) (string, bool) {
	fields := strings.Fields(body)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "/auth") {
		return "", false
	}
	return fields[1], true
}

// markdownToHTML does a conservative bold and inline-code conversion (code
// fences become plain line breaks; links are left as text); ok is false
// when the text has no markdown worth a formatted body.
func markdownToHTML(text string) (string, bool) {
	if !strings.Contains(text, "**") && !strings.Contains(text, "```") && !strings.Contains(text, "`") {
		return "", false
	}
	html := text
	html = strings.ReplaceAll(html, "```", "\n")
	html = replacePairs(html, "**", "<strong>", "</strong>")
	html = replacePairs(html, "`", "<code>", "</code>")
	return html, true
}

// replacePairs wraps alternating occurrences of marker with an open/close tag.
func replacePairs(text, marker, open, closeTag string) string {
	parts := strings.Split(text, marker)
	if len(parts) < 3 {
		return text
	}
	var b strings.Builder
	for i, p := range parts {
		if i%2 == 1 {
			b.WriteString(open)
			b.WriteString(p)
			b.WriteString(closeTag)
		} else {
			b.WriteString(p)
		}
	}
	return b.String()
}

func readFileWithMimeType(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}

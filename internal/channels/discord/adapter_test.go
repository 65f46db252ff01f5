package discord

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/nexus-assistant/internal/channels"
	"github.com/haasonsaas/nexus-assistant/internal/pairing"
)

func TestConfigValidateRequiresToken(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate() to reject a missing bot token")
	}
}

func TestConfigValidateAppliesDefaults(t *testing.T) {
	cfg := Config{BotToken: "abc"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.CommandPrefix != "!" {
		t.Fatalf("CommandPrefix = %q, want default \"!\"", cfg.CommandPrefix)
	}
}

// fakeSession implements discordSession for adapter tests without a real
// gateway connection.
type fakeSession struct {
	mu       sync.Mutex
	sent     []string
	typingAt []string
}

func (f *fakeSession) Open() error  { return nil }
func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data.Content)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingAt = append(f.typingAt, channelID)
	return nil
}

func (f *fakeSession) AddHandler(handler interface{}) func() { return func() {} }

type stubRouter struct {
	reply string
	err   error
	got   channels.IncomingMessage
}

func (s *stubRouter) Route(_ context.Context, msg channels.IncomingMessage) (string, error) {
	s.got = msg
	return s.reply, s.err
}

func newTestAdapter(t *testing.T, router channels.Router) (*Adapter, *fakeSession) {
	t.Helper()
	store := pairing.NewStore(t.TempDir())
	session := &fakeSession{}
	cfg := Config{BotToken: "t", CommandPrefix: "!"}
	_ = cfg.Validate()
	return newAdapter(cfg, session, store, router), session
}

func TestHandleMessageIssuesCodeForUnauthorizedUser(t *testing.T) {
	router := &stubRouter{reply: "should not be reached"}
	a, session := newTestAdapter(t, router)

	a.handleMessage(context.Background(), &discordgo.Message{
		Author:    &discordgo.User{ID: "u1"},
		ChannelID: "c1",
		Content:   "hello",
	})

	if len(session.sent) != 1 || !strings.Contains(session.sent[0], "not authorized") {
		t.Fatalf("expected an authorization prompt, got %v", session.sent)
	}
	if router.got.Text != "" {
		t.Fatal("router should not have been invoked for an unauthorized user")
	}
}

func TestHandleMessageRedeemsAuthCommand(t *testing.T) {
	router := &stubRouter{}
	a, _ := newTestAdapter(t, router)

	code, err := a.pairing.RequestCode("discord", "u1")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	a.handleMessage(context.Background(), &discordgo.Message{
		Author:    &discordgo.User{ID: "u1"},
		ChannelID: "c1",
		Content:   "!auth " + code,
	})

	authorized, err := a.pairing.IsAuthorized("discord", "u1")
	if err != nil {
		t.Fatalf("IsAuthorized() error = %v", err)
	}
	if !authorized {
		t.Fatal("expected the identity to be authorized after redeeming the code")
	}
}

func TestHandleMessageRoutesAuthorizedText(t *testing.T) {
	router := &stubRouter{reply: "hi there"}
	a, session := newTestAdapter(t, router)
	mustAuthorize(t, a, "u1")

	a.handleMessage(context.Background(), &discordgo.Message{
		Author:    &discordgo.User{ID: "u1"},
		ChannelID: "c1",
		Content:   "hello",
	})

	if router.got.Text != "hello" || router.got.Platform != "discord" || router.got.UserID != "u1" {
		t.Fatalf("unexpected routed message: %+v", router.got)
	}
	if len(session.sent) != 1 || session.sent[0] != "hi there" {
		t.Fatalf("expected the router's reply to be sent, got %v", session.sent)
	}
}

func TestParseAuthCommand(t *testing.T) {
	tests := []struct {
		text   string
		prefix string
		want   string
		ok     bool
	}{
		{"!auth ABCD1234", "!", "ABCD1234", true},
		{"/auth ABCD1234", "!", "ABCD1234", true},
		{"hello there", "!", "", false},
		{"!auth", "!", "", false},
	}
	for _, tt := range tests {
		code, ok := parseAuthCommand(tt.text, tt.prefix)
		if ok != tt.ok || code != tt.want {
			t.Errorf("parseAuthCommand(%q) = (%q, %v), want (%q, %v)", tt.text, code, ok, tt.want, tt.ok)
		}
	}
}

func mustAuthorize(t *testing.T, a *Adapter, userID string) {
	t.Helper()
	code, err := a.pairing.RequestCode("discord", userID)
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	if _, err := a.pairing.Redeem(code); err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
}

package models

import "time"

// ChatSurface identifies the chat ingress a Session is bound to, so that
// status updates and image sends fired from deep inside a tool-calling loop
// can be routed back to the right place without threading it through every
// call.
type ChatSurface struct {
	Platform string `json:"platform"` // "matrix", "discord", "web", ""
	RoomID   string `json:"room_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// Bound reports whether this surface refers to an actual chat ingress
// (as opposed to the zero value used by web-only or sub-agent sessions).
func (s ChatSurface) Bound() bool {
	return s.Platform != "" && s.Platform != "web"
}

// Session is keyed by (ingress platform, user identity) and holds everything
// the tool-calling loop needs to continue a conversation. Sessions are never
// persisted; they live for the lifetime of the process and are rebuilt on
// /new or on a model switch.
type Session struct {
	ID           string
	Platform     string
	UserID       string
	Model        string // provider-prefixed model reference, e.g. "anthropic/claude-sonnet-4"
	SystemPrompt string
	Messages     []Message
	Surface      ChatSurface

	// PendingImages is cleared by Reset and not otherwise read or written;
	// images received without text are buffered by the platform adapters.
	PendingImages []Image

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates an empty session for (platform, userID).
func NewSession(id, platform, userID string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Platform:  platform,
		UserID:    userID,
		Messages:  nil,
		Surface:   ChatSurface{Platform: platform, UserID: userID},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears history and pending images, keeping model and system prompt in
// place (used by /new). ResetWithModel additionally replaces the model and
// system prompt (used by a model switch).
func (s *Session) Reset() {
	s.Messages = nil
	s.PendingImages = nil
	s.UpdatedAt = time.Now()
}

func (s *Session) ResetWithModel(model, systemPrompt string) {
	s.Model = model
	s.SystemPrompt = systemPrompt
	s.Reset()
}

// Append adds a message to the session history and bumps UpdatedAt.
func (s *Session) Append(m Message) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now()
}

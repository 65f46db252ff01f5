package matrix

import (
	"log/slog"

	"github.com/haasonsaas/nexus-assistant/internal/channels"
)

// Config holds the settings for one Matrix ingress connection, built from
// the config.yaml chat_clients.matrix block (§6).
type Config struct {
	// Homeserver is the Matrix homeserver URL (required).
	Homeserver string

	// UserID is the bot's Matrix user ID, e.g. "@assistant:example.org" (required).
	UserID string

	// AccessToken authenticates the client (required).
	AccessToken string

	// DeviceID is the device ID for this client session.
	DeviceID string

	// EncryptedRooms lists room IDs the adapter should treat as
	// end-to-end-encrypted, maintaining olm/megolm sessions for them.
	EncryptedRooms []string

	// StoreDir holds the per-config-directory crypto store (olm account,
	// megolm sessions, device tracking) so E2EE state survives restarts.
	StoreDir string

	// PickleKey encrypts the on-disk crypto store at rest.
	PickleKey string

	Logger *slog.Logger
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Homeserver == "" {
		return channels.ErrConfig("homeserver is required", nil)
	}
	if c.UserID == "" {
		return channels.ErrConfig("user_id is required", nil)
	}
	if c.AccessToken == "" {
		return channels.ErrConfig("access_token is required", nil)
	}
	if c.StoreDir == "" {
		c.StoreDir = "matrix-store"
	}
	if c.PickleKey == "" {
		c.PickleKey = "nexus-assistant-matrix-pickle"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// isEncryptedRoom reports whether roomID is in the configured encrypted set.
func (c *Config) isEncryptedRoom(roomID string) bool {
	for _, r := range c.EncryptedRooms {
		if r == roomID {
			return true
		}
	}
	return false
}

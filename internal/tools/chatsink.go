package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// ChatSink is the capability send_image and status_update need to reach
// back into whichever chat surface is bound to the current session. It is
// registered per ingress platform tag at startup (Design Notes' "cyclic
// module state" guidance: the chat-platform components register
// themselves, and the tool executor resolves by tag rather than importing
// the ingress packages directly).
type ChatSink interface {
	// SendImage routes an image upload via the surface's native mechanism
	// (Matrix upload+send, Discord multipart, or a file-path echo for web).
	SendImage(ctx context.Context, surface models.ChatSurface, path, caption string) error

	// StatusUpdate pushes a mid-flight text message without terminating the
	// loop; the typing indicator is re-asserted by the sink afterward.
	StatusUpdate(ctx context.Context, surface models.ChatSurface, message string) error
}

// SinkRegistry resolves a ChatSink by platform tag.
type SinkRegistry struct {
	sinks map[string]ChatSink
}

func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{sinks: make(map[string]ChatSink)}
}

func (r *SinkRegistry) Register(platform string, sink ChatSink) {
	r.sinks[platform] = sink
}

func (r *SinkRegistry) Get(platform string) (ChatSink, bool) {
	s, ok := r.sinks[platform]
	return s, ok
}

// SendImageTool suppresses the loop's subsequent text reply when it
// succeeds: the image is the response (§4.1).
type SendImageTool struct {
	Sinks *SinkRegistry
}

func NewSendImageTool(sinks *SinkRegistry) *SendImageTool {
	return &SendImageTool{Sinks: sinks}
}

func (t *SendImageTool) Name() string        { return "send_image" }
func (t *SendImageTool) Tier() Tier          { return TierMain }
func (t *SendImageTool) Description() string { return "Send an image to the bound chat surface." }

func (t *SendImageTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"caption": map[string]any{"type": "string"},
		},
		"required": []string{"path"},
	}
}

func (t *SendImageTool) Run(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "error: path is required", nil
	}
	caption, _ := args["caption"].(string)

	surface, bound := SurfaceFromContext(ctx)
	if !bound || !surface.Bound() {
		return fmt.Sprintf("delivered (web): %s", path), nil
	}

	sink, ok := t.Sinks.Get(surface.Platform)
	if !ok {
		return fmt.Sprintf("error: no chat sink registered for platform %q", surface.Platform), nil
	}
	if err := sink.SendImage(ctx, surface, path, caption); err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	return "image sent", nil
}

// StatusUpdateTool is available only when a chat ingress is bound.
type StatusUpdateTool struct {
	Sinks *SinkRegistry
}

func NewStatusUpdateTool(sinks *SinkRegistry) *StatusUpdateTool {
	return &StatusUpdateTool{Sinks: sinks}
}

func (t *StatusUpdateTool) Name() string        { return "status_update" }
func (t *StatusUpdateTool) Tier() Tier          { return TierMain }
func (t *StatusUpdateTool) Description() string {
	return "Push a mid-flight status message to the current chat surface without ending the turn."
}

func (t *StatusUpdateTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"message": map[string]any{"type": "string"}},
		"required":   []string{"message"},
	}
}

func (t *StatusUpdateTool) Run(ctx context.Context, args map[string]any) (string, error) {
	message, _ := args["message"].(string)
	if message == "" {
		return "error: message is required", nil
	}

	surface, bound := SurfaceFromContext(ctx)
	if !bound || !surface.Bound() {
		return "error: no chat ingress is bound to this session", nil
	}

	sink, ok := t.Sinks.Get(surface.Platform)
	if !ok {
		return fmt.Sprintf("error: no chat sink registered for platform %q", surface.Platform), nil
	}
	if err := sink.StatusUpdate(ctx, surface, message); err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	return "status sent", nil
}

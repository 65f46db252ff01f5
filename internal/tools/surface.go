package tools

import (
	"context"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

type surfaceKey struct{}

// WithSurface binds the session's bound chat surface into ctx so that
// surface-aware tools (send_image, status_update) can resolve where to
// route their side effect without the registry needing a per-session copy
// of itself.
func WithSurface(ctx context.Context, surface models.ChatSurface) context.Context {
	return context.WithValue(ctx, surfaceKey{}, surface)
}

// SurfaceFromContext retrieves the bound surface, if any.
func SurfaceFromContext(ctx context.Context) (models.ChatSurface, bool) {
	s, ok := ctx.Value(surfaceKey{}).(models.ChatSurface)
	return s, ok
}

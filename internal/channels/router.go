package channels

import "context"

// Router delegates a normalized inbound message to the session manager and
// returns the reply text to send back. Adapters depend on this narrow
// interface rather than importing the session manager directly, the same
// dependency-injection shape internal/tools uses for its ConfigStore and
// ChatSink capabilities.
type Router interface {
	Route(ctx context.Context, msg IncomingMessage) (reply string, err error)
}

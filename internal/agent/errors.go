package agent

import "errors"

// Sentinel errors surfaced by the loop and its runners.
var (
	// ErrNoFallbackAvailable indicates every configured fallback model was
	// exhausted without a usable response.
	ErrNoFallbackAvailable = errors.New("agent: no fallback model available")

	// ErrModelNotFound indicates a model switch or invocation referenced a
	// model the dispatcher could not resolve.
	ErrModelNotFound = errors.New("agent: model not found")
)

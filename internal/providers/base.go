package providers

import (
	"context"
	"time"
)

// base holds the retry policy shared by every adapter. Each adapter embeds
// it and calls retry around its HTTP round-trip.
type base struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

func newBase(name string) base {
	return base{name: name, maxRetries: 3, retryDelay: 2 * time.Second}
}

// retry runs op up to maxRetries+1 times, sleeping retryDelay between
// attempts, stopping early once op returns a non-retryable *Error (or no
// error). Per §4.2, three in-adapter retries with a ~2s backoff precede
// surfacing the error to the loop.
func (b base) retry(ctx context.Context, op func(attempt int) (ChatResponse, error)) (ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		resp, err := op(attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		perr, ok := err.(*Error)
		if !ok || !perr.Kind.Retryable() || attempt == b.maxRetries {
			return ChatResponse{}, err
		}

		select {
		case <-ctx.Done():
			return ChatResponse{}, ctx.Err()
		case <-time.After(b.retryDelay):
		}
	}
	return ChatResponse{}, lastErr
}

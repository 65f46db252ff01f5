package agent

// DefaultRoundCap is the independent round limit applied to the main loop,
// the sub-agent runner, and each side of a debate (§4.5, §4.6). Per-model
// retry timing lives in internal/providers (each adapter retries
// transient errors against the same model before the loop moves on to a
// fallback).
const DefaultRoundCap = 15

// LoopOptions configures a single invocation of Run.
type LoopOptions struct {
	// RoundCap overrides DefaultRoundCap when positive.
	RoundCap int

	// Tools is not read by Run; the tool set for an invocation is passed to
	// Run as its own argument.
	Tools *ToolSet

	// CancelKey is not read by Run; cancellation is looked up under the
	// session's Platform and UserID (§4.11).
	CancelKey string

	// Observer, when set, receives streaming-relevant events as the loop
	// runs — per-round thinking/content deltas and the tool names a round
	// invoked — for the HTTP/SSE façade (§4.12). A nil Observer is a valid
	// no-op; callers outside the façade never need to set it.
	Observer Observer
}

// Observer receives a live narration of one Run invocation.
type Observer interface {
	OnThinking(delta string)
	OnContent(delta string)
	OnToolCalls(names []string)
}

func (o LoopOptions) notifyThinking(delta string) {
	if o.Observer != nil && delta != "" {
		o.Observer.OnThinking(delta)
	}
}

func (o LoopOptions) notifyContent(delta string) {
	if o.Observer != nil && delta != "" {
		o.Observer.OnContent(delta)
	}
}

func (o LoopOptions) notifyToolCalls(names []string) {
	if o.Observer != nil && len(names) > 0 {
		o.Observer.OnToolCalls(names)
	}
}

func (o LoopOptions) roundCap() int {
	if o.RoundCap > 0 {
		return o.RoundCap
	}
	return DefaultRoundCap
}

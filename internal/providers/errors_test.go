package providers

import "testing"

func TestNewErrorClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindAuth},
		{403, KindAuth},
		{429, KindRateLimit},
		{503, KindOverloaded},
		{400, KindBadRequest},
		{500, KindServer5xx},
	}
	for _, c := range cases {
		err := NewError("anthropic", "claude", c.status, nil)
		if err.Kind != c.want {
			t.Errorf("status %d: kind = %q, want %q", c.status, err.Kind, c.want)
		}
	}
}

func TestErrorMessageTruncatedTo300(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	err := &Error{Kind: KindBadRequest, Provider: "openai", Message: string(long)}
	if len(err.Error()) > 340 { // allow for the "provider: [kind] " prefix
		t.Fatalf("error message not truncated, len=%d", len(err.Error()))
	}
}

func TestRetryableAndFatal(t *testing.T) {
	if !KindTimeout.Retryable() {
		t.Error("timeout should be retryable")
	}
	if KindAuth.Retryable() {
		t.Error("auth should not be retryable")
	}
	if !KindAuth.Fatal() {
		t.Error("auth should be fatal")
	}
	if KindTimeout.Fatal() {
		t.Error("timeout should not be fatal")
	}
}

package cancel

import "testing"

func TestConsumeClearsFlag(t *testing.T) {
	r := New()
	r.Set("matrix", "@alice:example.org", Stop)

	if got := r.Peek("matrix", "@alice:example.org"); got != Stop {
		t.Fatalf("Peek = %q, want %q", got, Stop)
	}

	if got := r.Consume("matrix", "@alice:example.org"); got != Stop {
		t.Fatalf("Consume = %q, want %q", got, Stop)
	}

	if got := r.Peek("matrix", "@alice:example.org"); got != None {
		t.Fatalf("flag not cleared after Consume, got %q", got)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	r := New()
	r.Set("discord", "alice", Stop)
	r.Set("discord", "bob", Abort)

	if got := r.Peek("discord", "alice"); got != Stop {
		t.Fatalf("alice flag = %q, want %q", got, Stop)
	}
	if got := r.Peek("discord", "bob"); got != Abort {
		t.Fatalf("bob flag = %q, want %q", got, Abort)
	}
}

func TestClearWithoutConsume(t *testing.T) {
	r := New()
	r.Set("matrix", "carol", Stop)
	r.Clear("matrix", "carol")
	if got := r.Peek("matrix", "carol"); got != None {
		t.Fatalf("flag present after Clear: %q", got)
	}
}

package memory

import (
	"testing"
	"time"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

func TestAppendAndReadRecentAt(t *testing.T) {
	l := NewLogger(t.TempDir(), 0)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	if err := l.Append("matrix", "u1", models.Message{Role: models.RoleUser, Content: "hello there", CreatedAt: now}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append("matrix", "u2", models.Message{Role: models.RoleUser, Content: "someone else", CreatedAt: now}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	lines, err := l.ReadRecentAt(now, "matrix", "u1", 3, 10)
	if err != nil {
		t.Fatalf("ReadRecentAt() error = %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line for u1, got %v", lines)
	}
	if want := "hello there"; !containsSubstring(lines[0], want) {
		t.Fatalf("line %q does not contain %q", lines[0], want)
	}
}

func TestReadRecentAtTruncatesToMaxLines(t *testing.T) {
	l := NewLogger(t.TempDir(), 0)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := l.Append("discord", "u1", models.Message{Role: models.RoleUser, Content: "msg", CreatedAt: now}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	lines, err := l.ReadRecentAt(now, "discord", "u1", 1, 2)
	if err != nil {
		t.Fatalf("ReadRecentAt() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected maxLines to cap at 2, got %d", len(lines))
	}
}

func TestAppendTruncatesLongLines(t *testing.T) {
	l := NewLogger(t.TempDir(), 5)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	if err := l.Append("matrix", "u1", models.Message{Role: models.RoleUser, Content: "this is a long message", CreatedAt: now}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	lines, err := l.ReadRecentAt(now, "matrix", "u1", 1, 10)
	if err != nil {
		t.Fatalf("ReadRecentAt() error = %v", err)
	}
	if len(lines) != 1 || !containsSubstring(lines[0], "this ...") {
		t.Fatalf("expected truncated content, got %v", lines)
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

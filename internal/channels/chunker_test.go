package channels

import (
	"strings"
	"testing"
)

func TestMessageChunkerShortText(t *testing.T) {
	chunker := NewMessageChunker(100)
	text := "Hello, world!"

	chunks := chunker.Chunk(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("Chunk(%q) = %v, want single chunk unchanged", text, chunks)
	}
}

func TestMessageChunkerEmptyText(t *testing.T) {
	chunker := NewMessageChunker(100)
	if chunks := chunker.Chunk(""); chunks != nil {
		t.Errorf("expected nil for empty text, got %v", chunks)
	}
}

func TestMessageChunkerPrefersSeparator(t *testing.T) {
	chunker := NewMessageChunker(40)
	text := strings.Repeat("a", 20) + "\n---\n" + strings.Repeat("b", 20)

	chunks := chunker.Chunk(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "b") || strings.Contains(chunks[1], "a") {
		t.Fatalf("expected split at separator, got %v", chunks)
	}
}

func TestMessageChunkerFallsBackToNewlineThenSpace(t *testing.T) {
	chunker := NewMessageChunker(20)
	text := "one two three four five six seven"

	chunks := chunker.Chunk(text)
	for _, c := range chunks {
		if len(c) > 20 {
			t.Fatalf("chunk %q exceeds MaxSize", c)
		}
	}
	if strings.Join(chunks, " ") == "" {
		t.Fatal("expected non-empty reassembled chunks")
	}
}

func TestMessageChunkerRespectsDiscordDefault(t *testing.T) {
	chunker := NewMessageChunker(0)
	if chunker.MaxSize != DiscordMaxChunk {
		t.Fatalf("MaxSize = %d, want default %d", chunker.MaxSize, DiscordMaxChunk)
	}
}

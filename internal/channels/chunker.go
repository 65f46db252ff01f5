package channels

import (
	"strings"
	"unicode"
)

// DiscordMaxChunk is Discord's hard per-message character limit (§4.10).
const DiscordMaxChunk = 2000

// MessageChunker splits long outbound text into pieces no longer than
// MaxSize, preferring to break on the author's own "---" section
// separators, then on newlines, then on word boundaries.
type MessageChunker struct {
	MaxSize int
}

// NewMessageChunker creates a chunker with the given max size, defaulting
// to Discord's limit if maxSize is non-positive.
func NewMessageChunker(maxSize int) *MessageChunker {
	if maxSize <= 0 {
		maxSize = DiscordMaxChunk
	}
	return &MessageChunker{MaxSize: maxSize}
}

// Chunk splits text into pieces that fit within MaxSize, breaking at the
// last "---" separator within the window if one exists, else the last
// newline, else the last space, else hard at MaxSize.
func (c *MessageChunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= c.MaxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > c.MaxSize {
		breakIdx := c.findBreakPoint(remaining)
		if breakIdx <= 0 {
			breakIdx = c.MaxSize
		}

		chunk := strings.TrimRightFunc(remaining[:breakIdx], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimLeftFunc(remaining[breakIdx:], unicode.IsSpace)
	}

	if remaining = strings.TrimSpace(remaining); remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// findBreakPoint finds the best position within the first MaxSize
// characters of text to break at, in the order the spec names: "---"
// separators, then newlines, then spaces.
func (c *MessageChunker) findBreakPoint(text string) int {
	if len(text) <= c.MaxSize {
		return len(text)
	}
	window := text[:c.MaxSize]

	if idx := strings.LastIndex(window, "\n---\n"); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx
	}
	return c.MaxSize
}

// SplitMessage is a convenience wrapper for one-off chunking.
func SplitMessage(text string, maxLength int) []string {
	return NewMessageChunker(maxLength).Chunk(text)
}

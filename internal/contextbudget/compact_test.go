package contextbudget

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

type fakeSummarizer struct {
	summary string
	err     error
}

func (f fakeSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	return f.summary, f.err
}

func seedHistory(n int, charsEach int) []models.Message {
	history := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		history = append(history, repeatMsg(role, charsEach))
	}
	return history
}

func TestCompactReplacesOlderHalfWithSummary(t *testing.T) {
	history := seedHistory(40, 400)
	sum := fakeSummarizer{summary: "- discussed X\n- decided Y"}

	compacted := Compact(context.Background(), sum, "", history, 4096)

	if len(compacted) == 0 || compacted[0].Role != models.RoleSystem {
		t.Fatalf("expected synthetic system message at head, got %+v", compacted[0])
	}
	if !strings.HasPrefix(compacted[0].Content, summaryPrefix) {
		t.Fatalf("summary message missing prefix: %q", compacted[0].Content)
	}
	if EstimateRound("", nil, compacted) > Budget(4096, DefaultContextQuota) {
		t.Fatal("compacted history should fit the budget")
	}
}

func TestCompactFallsBackToHardTrimOnSummarizerFailure(t *testing.T) {
	history := seedHistory(40, 400)
	sum := fakeSummarizer{err: errors.New("provider unavailable")}

	compacted := Compact(context.Background(), sum, "", history, 4096)

	// Hard trim pins the last message; it should never be a synthetic
	// summary head in this path.
	if compacted[0].Role == models.RoleSystem {
		t.Fatal("expected hard-trim fallback, not a summary message")
	}
}

func TestCompactSkipsBelowMinimum(t *testing.T) {
	history := seedHistory(3, 400)
	sum := fakeSummarizer{summary: "short"}
	compacted := Compact(context.Background(), sum, "", history, 4096)
	if len(compacted) != len(history) {
		t.Fatalf("expected no compaction below minimum message count, got %d messages", len(compacted))
	}
}

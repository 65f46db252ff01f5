package contextbudget

import (
	"strings"
	"testing"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

func repeatMsg(role models.Role, n int) models.Message {
	return models.Message{Role: role, Content: strings.Repeat("a", n)}
}

func TestHardTrimPinsLastMessage(t *testing.T) {
	history := []models.Message{
		repeatMsg(models.RoleUser, 10000),
		repeatMsg(models.RoleAssistant, 10000),
		repeatMsg(models.RoleUser, 50),
	}
	kept := HardTrim("", nil, history, 100)
	if len(kept) == 0 {
		t.Fatal("expected at least the pinned last message")
	}
	if kept[len(kept)-1].Content != history[len(history)-1].Content {
		t.Fatal("last message must be pinned")
	}
}

func TestHardTrimKeepsEverythingWhenUnderBudget(t *testing.T) {
	history := []models.Message{
		repeatMsg(models.RoleUser, 10),
		repeatMsg(models.RoleAssistant, 10),
	}
	kept := HardTrim("sys", nil, history, 100000)
	if len(kept) != 2 {
		t.Fatalf("expected both messages kept, got %d", len(kept))
	}
}

func TestNeedsCompactionTrue(t *testing.T) {
	history := make([]models.Message, 0, 40)
	for i := 0; i < 40; i++ {
		history = append(history, repeatMsg(models.RoleUser, 400))
	}
	incoming := repeatMsg(models.RoleUser, 50)
	if !NeedsCompaction("", nil, history, incoming, 4096, DefaultContextQuota) {
		t.Fatal("expected compaction to be needed for a 40x400-char history at num_ctx=4096")
	}
}

func TestBudgetFormula(t *testing.T) {
	if got := Budget(4096, 0.85); got != 3481 {
		t.Fatalf("Budget(4096, 0.85) = %d, want 3481", got)
	}
}

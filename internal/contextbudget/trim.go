package contextbudget

import (
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// HardTrim drops oldest history messages until
// estimate(system + tools + history + current) <= numCtx - reserve.
// The system prompt, the tools schema, and the last message in the window
// are pinned and never dropped; if even the pinned set alone exceeds the
// budget, HardTrim returns just that pinned set (the caller's provider call
// will still be made — there is nothing further to trim).
func HardTrim(system string, tools []providers.ToolSchema, history []models.Message, numCtx int) []models.Message {
	if len(history) == 0 {
		return history
	}

	budget := numCtx - ReserveTokens
	fixed := EstimateTokens(system) + EstimateToolSchema(tools)

	last := history[len(history)-1]
	kept := []models.Message{last}
	total := fixed + last.EstimatedTokens()

	for i := len(history) - 2; i >= 0; i-- {
		m := history[i]
		cost := m.EstimatedTokens()
		if total+cost > budget {
			break
		}
		kept = append([]models.Message{m}, kept...)
		total += cost
	}

	return kept
}

// NeedsCompaction reports whether estimate(system+tools+history+incoming)
// would exceed the budget before the next provider call.
func NeedsCompaction(system string, tools []providers.ToolSchema, history []models.Message, incoming models.Message, numCtx int, quota float64) bool {
	budget := Budget(numCtx, quota)
	total := EstimateRound(system, tools, history) + incoming.EstimatedTokens()
	return total > budget
}

// MinMessagesForSmartCompaction is the floor below which smart compaction
// never triggers; fewer messages than this and a hard trim is sufficient
// and cheaper.
const MinMessagesForSmartCompaction = 6

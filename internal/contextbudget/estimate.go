// Package contextbudget implements the deterministic token estimator, the
// hard-trim history reducer, and the smart-compaction summarizer the
// tool-calling loop consults before every provider call, per §4.4.
package contextbudget

import (
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// DefaultContextQuota is the fraction of num_ctx the loop is allowed to use.
const DefaultContextQuota = 0.85

// ReserveTokens is subtracted from the usable budget before a hard trim, to
// leave headroom for the model's own completion.
const ReserveTokens = 1024

// Budget returns max_used = floor(numCtx * quota).
func Budget(numCtx int, quota float64) int {
	if quota <= 0 {
		quota = DefaultContextQuota
	}
	return int(float64(numCtx) * quota)
}

// EstimateTokens applies the len(text)/3 heuristic over a string, used for
// system prompt and tool-schema estimates that aren't full Messages.
func EstimateTokens(text string) int {
	n := len(text) / 3
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateToolSchema estimates the tokens a published tool schema set costs.
func EstimateToolSchema(tools []providers.ToolSchema) int {
	total := 0
	for _, t := range tools {
		total += EstimateTokens(t.Name + t.Description)
		total += estimateJSONValue(t.Parameters)
	}
	return total
}

func estimateJSONValue(v map[string]any) int {
	// A JSON-schema object is small and its string content dominates the
	// estimate; approximate by the marshaled length without requiring a
	// dependency on encoding/json here beyond what's already imported
	// elsewhere in the loop.
	n := 0
	for k, val := range v {
		n += len(k)
		if s, ok := val.(string); ok {
			n += len(s)
		} else {
			n += 16
		}
	}
	return n / 3
}

// EstimateMessages sums EstimatedTokens over a message slice.
func EstimateMessages(msgs []models.Message) int {
	total := 0
	for _, m := range msgs {
		total += m.EstimatedTokens()
	}
	return total
}

// EstimateRound estimates system + tools + history + current against the
// budget, per the invariant in §3: "For every round inside the loop, total
// estimated tokens (system prompt + tools schema + messages) must stay under
// context_quota × num_ctx".
func EstimateRound(system string, tools []providers.ToolSchema, history []models.Message) int {
	return EstimateTokens(system) + EstimateToolSchema(tools) + EstimateMessages(history)
}

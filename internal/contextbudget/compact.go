package contextbudget

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// Summarizer is the narrow contract the compactor needs from the current
// provider: produce a bullet summary of an already-rendered transcript.
// Wiring supplies one that delegates to the sub-agent runner, or nil when
// no sub-agent is configured, so the compactor stays provider-agnostic.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

const summaryPrefix = "[summary of prior conversation]"

// Compact implements smart compaction: retain the newest messages whose
// cumulative estimate <= numCtx*0.15, render the older half as a readable
// transcript, ask the summarizer for a <=400-word bullet summary, and
// replace the older half with one synthetic system message carrying that
// summary. On summarizer failure, with a nil summarizer, or if fewer than
// MinMessagesForSmartCompaction messages are present, it falls back to
// HardTrim. Compaction is idempotent: if the produced summary message still
// doesn't fit, a hard trim runs on top of the compacted result.
func Compact(ctx context.Context, sum Summarizer, system string, history []models.Message, numCtx int) []models.Message {
	if sum == nil || len(history) < MinMessagesForSmartCompaction {
		return HardTrim(system, nil, history, numCtx)
	}

	recentBudget := int(float64(numCtx) * 0.15)
	split := len(history)
	total := 0
	for split > 0 {
		cost := history[split-1].EstimatedTokens()
		if total+cost > recentBudget {
			break
		}
		total += cost
		split--
	}
	if split == 0 {
		split = len(history) / 2
	}

	older := history[:split]
	recent := history[split:]

	transcript := renderTranscript(older)
	prompt := buildSummarizationPrompt(transcript)

	summary, err := sum.Summarize(ctx, prompt)
	if err != nil || strings.TrimSpace(summary) == "" {
		return HardTrim(system, nil, history, numCtx)
	}

	summaryMsg := models.Message{
		Role:    models.RoleSystem,
		Content: summaryPrefix + "\n" + summary,
	}

	compacted := append([]models.Message{summaryMsg}, recent...)

	// Idempotence: if the compacted result still doesn't fit, hard trim on
	// top (this is the pathological "the summary itself is too big" case).
	if EstimateRound(system, nil, compacted) > Budget(numCtx, DefaultContextQuota) {
		return HardTrim(system, nil, compacted, numCtx)
	}
	return compacted
}

func renderTranscript(msgs []models.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case models.RoleAssistant:
			if m.Content != "" {
				fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
			}
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "Assistant called %s(%s)\n", tc.Name, truncate(string(tc.Input), 300))
			}
		case models.RoleTool:
			for _, tr := range m.ToolResults {
				fmt.Fprintf(&b, "Tool %s result: %s\n", tr.Name, truncate(tr.Content, 300))
			}
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}

func buildSummarizationPrompt(transcript string) string {
	return "Summarize the conversation below in at most 400 words, as bullet points. " +
		"Capture key topics discussed, decisions made, pending tasks, and tool executions " +
		"and their outcomes. Be factual and terse.\n\n" + transcript
}

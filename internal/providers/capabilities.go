package providers

import "strings"

// heuristicCapabilities implements the name-heuristic fallback used by
// adapters whose backend offers no capability-query endpoint: Gemini 2.5
// family implies thinking; o1/o3/o4/gpt-5 family implies reasoning plus the
// max_completion_tokens dispatch; llava/gemma3/minicpm-v implies vision.
func heuristicCapabilities(modelID string) Capabilities {
	m := strings.ToLower(modelID)

	caps := Capabilities{Tools: true}

	switch {
	case strings.Contains(m, "gemini-2.5") || strings.Contains(m, "gemini-1.5"):
		caps.Thinking = true
	case strings.Contains(m, "o1") || strings.Contains(m, "o3") || strings.Contains(m, "o4") || strings.Contains(m, "gpt-5"):
		caps.Thinking = true
	}

	switch {
	case strings.Contains(m, "llava"), strings.Contains(m, "gemma3"), strings.Contains(m, "minicpm-v"),
		strings.Contains(m, "gemini"), strings.Contains(m, "claude-3"), strings.Contains(m, "claude-sonnet"),
		strings.Contains(m, "claude-opus"), strings.Contains(m, "gpt-4"), strings.Contains(m, "gpt-5"):
		caps.Vision = true
	}

	return caps
}

// isReasoningModel reports whether modelID belongs to the OpenAI/DeepSeek
// reasoning family that takes max_completion_tokens instead of max_tokens.
func isReasoningModel(modelID string) bool {
	m := strings.ToLower(modelID)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.Contains(m, "gpt-5")
}

// truncate caps a string to n characters, used for the 300-character
// provider-error-message convention and for tool-argument previews.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

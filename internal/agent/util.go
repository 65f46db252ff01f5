package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

func decodeArgs(raw json.RawMessage, out *map[string]any) error {
	if len(raw) == 0 {
		*out = map[string]any{}
		return nil
	}
	return json.Unmarshal(raw, out)
}

const (
	toolCallOpenTag  = "<tool_call>"
	toolCallCloseTag = "</tool_call>"
)

// extractXMLToolCalls recognizes the <tool_call>{"name": ..., "arguments":
// {...}}</tool_call> shape some open-weight models emit as plain content
// instead of using the provider's native tool-call field (§4.5). It returns
// content with every well-formed block removed, and the calls found in
// declaration order; a block that doesn't parse as {name, arguments} is left
// in place untouched.
func extractXMLToolCalls(content string) (string, []models.ToolCall) {
	if !strings.Contains(content, toolCallOpenTag) {
		return content, nil
	}

	var calls []models.ToolCall
	var out strings.Builder
	rest := content

	for {
		start := strings.Index(rest, toolCallOpenTag)
		if start == -1 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		rest = rest[start+len(toolCallOpenTag):]

		end := strings.Index(rest, toolCallCloseTag)
		if end == -1 {
			out.WriteString(toolCallOpenTag)
			out.WriteString(rest)
			break
		}
		body := strings.TrimSpace(rest[:end])
		rest = rest[end+len(toolCallCloseTag):]

		var parsed struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(body), &parsed); err != nil || parsed.Name == "" {
			out.WriteString(toolCallOpenTag)
			out.WriteString(body)
			out.WriteString(toolCallCloseTag)
			continue
		}
		input, _ := json.Marshal(parsed.Arguments)
		calls = append(calls, models.ToolCall{
			ID:    fmt.Sprintf("xml-tool-call-%d", len(calls)),
			Name:  parsed.Name,
			Input: input,
		})
	}

	return strings.TrimSpace(out.String()), calls
}

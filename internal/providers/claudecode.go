package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// ClaudeCodeAdapter shells out to the claude-code CLI as a single --print
// invocation with JSON output, parsed into text + thinking. It has no
// native streaming; Stream synthesizes a single content-delta followed by
// done, matching the rest of the adapter contract.
type ClaudeCodeAdapter struct {
	base
	binary string
}

func NewClaudeCodeAdapter(binary string) *ClaudeCodeAdapter {
	if binary == "" {
		binary = "claude"
	}
	return &ClaudeCodeAdapter{base: newBase("claude-code"), binary: binary}
}

func (c *ClaudeCodeAdapter) Name() string { return "claude-code" }

func (c *ClaudeCodeAdapter) Capabilities(modelID string) Capabilities {
	return Capabilities{Tools: false, Vision: false, Thinking: true}
}

type claudeCodeOutput struct {
	Result   string `json:"result"`
	Thinking string `json:"thinking"`
	IsError  bool   `json:"is_error"`
	Error    string `json:"error"`
}

func (c *ClaudeCodeAdapter) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return c.retry(ctx, func(attempt int) (ChatResponse, error) {
		return c.once(ctx, req)
	})
}

func (c *ClaudeCodeAdapter) once(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	prompt := renderTranscript(req.System, req.Messages)

	args := []string{"--print", "--output-format", "json"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ChatResponse{}, WrapTransport("claude-code", req.Model, fmt.Errorf("%w: %s", err, truncate(stderr.String(), 300)))
	}

	var parsed claudeCodeOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return ChatResponse{Content: strings.TrimSpace(stdout.String())}, nil
	}
	if parsed.IsError {
		return ChatResponse{}, &Error{Kind: KindBadRequest, Provider: "claude-code", Model: req.Model, Message: parsed.Error}
	}
	return ChatResponse{Content: parsed.Result, Thinking: parsed.Thinking}, nil
}

func (c *ClaudeCodeAdapter) Stream(ctx context.Context, req ChatRequest) <-chan StreamChunk {
	out := make(chan StreamChunk, 2)
	go func() {
		defer close(out)
		resp, err := c.once(ctx, req)
		if err != nil {
			out <- StreamChunk{Kind: ChunkDone, Err: err}
			return
		}
		if resp.Thinking != "" {
			out <- StreamChunk{Kind: ChunkThinkingDelta, Delta: resp.Thinking}
		}
		if resp.Content != "" {
			out <- StreamChunk{Kind: ChunkContentDelta, Delta: resp.Content}
		}
		out <- StreamChunk{Kind: ChunkDone}
	}()
	return out
}

// renderTranscript flattens history into a single prompt, since the CLI has
// no structured multi-turn input; tool calls and tool-only privilege tiers
// are not available in this adapter (claude-code is not part of the
// sub-agent or model-switch tool set by convention).
func renderTranscript(system string, msgs []models.Message) string {
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			b.WriteString("User: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		case models.RoleTool:
			for _, tr := range m.ToolResults {
				b.WriteString("Tool result: ")
				b.WriteString(tr.Content)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

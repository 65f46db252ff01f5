package providers

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// AnthropicAdapter speaks the Anthropic Messages API: content-block arrays
// with tool_use/tool_result pairing, and a separate "thinking" block for
// extended reasoning.
type AnthropicAdapter struct {
	base
	client anthropic.Client
}

func NewAnthropicAdapter(apiKey, baseURL string) *AnthropicAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicAdapter{
		base:   newBase("anthropic"),
		client: anthropic.NewClient(opts...),
	}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) Capabilities(modelID string) Capabilities {
	return heuristicCapabilities(modelID)
}

func (a *AnthropicAdapter) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return a.retry(ctx, func(attempt int) (ChatResponse, error) {
		return a.once(ctx, req)
	})
}

func (a *AnthropicAdapter) once(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	params := a.buildParams(req)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return ChatResponse{}, classifyAnthropicErr(req.Model, err)
	}

	return fromAnthropicMessage(msg), nil
}

func (a *AnthropicAdapter) Stream(ctx context.Context, req ChatRequest) <-chan StreamChunk {
	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)

		params := a.buildParams(req)
		stream := a.client.Messages.NewStreaming(ctx, params)

		var pendingCalls []models.ToolCall
		var currentCall *models.ToolCall
		var currentArgs string

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					currentCall = &models.ToolCall{ID: tu.ID, Name: tu.Name}
					currentArgs = ""
				}
			case anthropic.ContentBlockDeltaEvent:
				switch d := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- StreamChunk{Kind: ChunkContentDelta, Delta: d.Text}
				case anthropic.ThinkingDelta:
					out <- StreamChunk{Kind: ChunkThinkingDelta, Delta: d.Thinking}
				case anthropic.InputJSONDelta:
					currentArgs += d.PartialJSON
				}
			case anthropic.ContentBlockStopEvent:
				if currentCall != nil {
					currentCall.Input = json.RawMessage(currentArgs)
					pendingCalls = append(pendingCalls, *currentCall)
					currentCall = nil
				}
			case anthropic.MessageStopEvent:
				if len(pendingCalls) > 0 {
					out <- StreamChunk{Kind: ChunkToolCallsReady, ToolCalls: pendingCalls}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Kind: ChunkDone, Err: classifyAnthropicErr(req.Model, err)}
			return
		}
		out <- StreamChunk{Kind: ChunkDone}
	}()
	return out
}

func (a *AnthropicAdapter) buildParams(req ChatRequest) anthropic.MessageNewParams {
	maxTokens := int64(4096)
	if v, ok := req.Options["max_tokens"].(int); ok && v > 0 {
		maxTokens = int64(v)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}
	if req.Thinking {
		// thinking.budget_tokens must be strictly less than max_tokens; the
		// adapter raises max_tokens as needed to keep the invariant.
		budget := maxTokens / 2
		if budget < 1024 {
			budget = 1024
		}
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + 1024
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params
}

func toAnthropicMessages(msgs []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
			for _, img := range m.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MimeType, encodeB64(img.Data)))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				_ = json.Unmarshal(tc.Input, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case models.RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for _, tr := range m.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toAnthropicTools(tools []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: t.Parameters},
			},
		})
	}
	return out
}

func fromAnthropicMessage(msg *anthropic.Message) ChatResponse {
	var resp ChatResponse
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += b.Text
		case anthropic.ThinkingBlock:
			resp.Thinking += b.Thinking
		case anthropic.ToolUseBlock:
			input, _ := json.Marshal(b.Input)
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
		}
	}
	resp.StopReason = string(msg.StopReason)
	return resp
}

func classifyAnthropicErr(model string, err error) error {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return NewError("anthropic", model, apiErr.StatusCode, fmt.Errorf("%s", apiErr.Message))
	}
	return WrapTransport("anthropic", model, err)
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	if apiErr, ok := err.(*anthropic.Error); ok {
		*target = apiErr
		return true
	}
	return false
}

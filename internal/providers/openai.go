package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// OpenAIAdapter speaks the OpenAI chat.completions dialect. DeepSeek is
// wire-compatible and reuses this adapter with a different base URL and
// provider label, per §4.2.
type OpenAIAdapter struct {
	base
	client   *openai.Client
	provider string
}

func NewOpenAIAdapter(apiKey, baseURL string) *OpenAIAdapter {
	return newOpenAICompatAdapter("openai", apiKey, baseURL)
}

func NewDeepSeekAdapter(apiKey, baseURL string) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	return newOpenAICompatAdapter("deepseek", apiKey, baseURL)
}

func newOpenAICompatAdapter(provider, apiKey, baseURL string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		base:     newBase(provider),
		client:   openai.NewClientWithConfig(cfg),
		provider: provider,
	}
}

func (o *OpenAIAdapter) Name() string { return o.provider }

func (o *OpenAIAdapter) Capabilities(modelID string) Capabilities {
	caps := heuristicCapabilities(modelID)
	caps.Thinking = isReasoningModel(modelID)
	return caps
}

func (o *OpenAIAdapter) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return o.retry(ctx, func(attempt int) (ChatResponse, error) {
		return o.once(ctx, req)
	})
}

func (o *OpenAIAdapter) once(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	params := o.buildRequest(req)

	resp, err := o.client.CreateChatCompletion(ctx, params)
	if err != nil {
		return ChatResponse{}, classifyOpenAIErr(o.provider, req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, &Error{Kind: KindBadRequest, Provider: o.provider, Model: req.Model, Message: "empty choices"}
	}
	return fromOpenAIChoice(resp.Choices[0]), nil
}

func (o *OpenAIAdapter) Stream(ctx context.Context, req ChatRequest) <-chan StreamChunk {
	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)

		params := o.buildRequest(req)
		params.Stream = true

		stream, err := o.client.CreateChatCompletionStream(ctx, params)
		if err != nil {
			out <- StreamChunk{Kind: ChunkDone, Err: classifyOpenAIErr(o.provider, req.Model, err)}
			return
		}
		defer stream.Close()

		toolCalls := map[int]*models.ToolCall{}
		var order []int

		for {
			resp, err := stream.Recv()
			if err != nil {
				if err.Error() == "EOF" {
					break
				}
				out <- StreamChunk{Kind: ChunkDone, Err: classifyOpenAIErr(o.provider, req.Model, err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				out <- StreamChunk{Kind: ChunkContentDelta, Delta: delta.Content}
			}
			if delta.ReasoningContent != "" {
				out <- StreamChunk{Kind: ChunkThinkingDelta, Delta: delta.ReasoningContent}
			}
			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				call, ok := toolCalls[idx]
				if !ok {
					call = &models.ToolCall{ID: tc.ID, Name: tc.Function.Name}
					toolCalls[idx] = call
					order = append(order, idx)
				}
				call.Input = append(call.Input, []byte(tc.Function.Arguments)...)
			}
		}

		if len(order) > 0 {
			calls := make([]models.ToolCall, 0, len(order))
			for _, idx := range order {
				calls = append(calls, *toolCalls[idx])
			}
			out <- StreamChunk{Kind: ChunkToolCallsReady, ToolCalls: calls}
		}
		out <- StreamChunk{Kind: ChunkDone}
	}()
	return out
}

func (o *OpenAIAdapter) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	params := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.System, req.Messages),
	}

	maxTokens := 4096
	if v, ok := req.Options["max_tokens"].(int); ok && v > 0 {
		maxTokens = v
	}
	if isReasoningModel(req.Model) {
		params.MaxCompletionTokens = maxTokens
	} else {
		params.MaxTokens = maxTokens
	}

	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}
	return params
}

func toOpenAIMessages(system string, msgs []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			if len(m.Images) == 0 {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
				continue
			}
			parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}
			for _, img := range m.Images {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: fmt.Sprintf("data:%s;base64,%s", img.MimeType, encodeB64(img.Data)),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			out = append(out, msg)
		case models.RoleTool:
			for _, tr := range m.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		}
	}
	return out
}

func toOpenAITools(tools []ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIChoice(choice openai.ChatCompletionChoice) ChatResponse {
	resp := ChatResponse{
		Content:    choice.Message.Content,
		Thinking:   choice.Message.ReasoningContent,
		StopReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp
}

func classifyOpenAIErr(provider, model string, err error) error {
	var apiErr *openai.APIError
	if asOpenAIAPIError(err, &apiErr) {
		return NewError(provider, model, apiErr.HTTPStatusCode, fmt.Errorf("%s", apiErr.Message))
	}
	return WrapTransport(provider, model, err)
}

func asOpenAIAPIError(err error, target **openai.APIError) bool {
	if apiErr, ok := err.(*openai.APIError); ok {
		*target = apiErr
		return true
	}
	return false
}

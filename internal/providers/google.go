package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// GoogleAdapter speaks the Gemini contents[].parts dialect: functionCall /
// functionResponse pairing, system as systemInstruction, inline base64
// images. Per §4.2, if the request carries inline images, thinking and
// tools are both disabled for that call (known incompatibility).
type GoogleAdapter struct {
	base
	client *genai.Client
}

func NewGoogleAdapter(ctx context.Context, apiKey string) (*GoogleAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GoogleAdapter{base: newBase("google"), client: client}, nil
}

func (g *GoogleAdapter) Name() string { return "google" }

func (g *GoogleAdapter) Capabilities(modelID string) Capabilities {
	return heuristicCapabilities(modelID)
}

func (g *GoogleAdapter) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return g.retry(ctx, func(attempt int) (ChatResponse, error) {
		return g.once(ctx, req)
	})
}

func (g *GoogleAdapter) once(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	hasImages := hasInlineImages(req.Messages)
	config := g.buildConfig(req, hasImages)

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, toGenaiContents(req.Messages), config)
	if err != nil {
		return ChatResponse{}, classifyGoogleErr(req.Model, err)
	}
	return fromGenaiResponse(resp), nil
}

func (g *GoogleAdapter) Stream(ctx context.Context, req ChatRequest) <-chan StreamChunk {
	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)

		hasImages := hasInlineImages(req.Messages)
		config := g.buildConfig(req, hasImages)

		var pendingCalls []models.ToolCall
		for chunk, err := range g.client.Models.GenerateContentStream(ctx, req.Model, toGenaiContents(req.Messages), config) {
			if err != nil {
				out <- StreamChunk{Kind: ChunkDone, Err: classifyGoogleErr(req.Model, err)}
				return
			}
			for _, cand := range chunk.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						if part.Thought {
							out <- StreamChunk{Kind: ChunkThinkingDelta, Delta: part.Text}
						} else {
							out <- StreamChunk{Kind: ChunkContentDelta, Delta: part.Text}
						}
					}
					if part.FunctionCall != nil {
						input, _ := json.Marshal(part.FunctionCall.Args)
						pendingCalls = append(pendingCalls, models.ToolCall{
							Name:  part.FunctionCall.Name,
							Input: input,
						})
					}
				}
			}
		}
		if len(pendingCalls) > 0 {
			out <- StreamChunk{Kind: ChunkToolCallsReady, ToolCalls: pendingCalls}
		}
		out <- StreamChunk{Kind: ChunkDone}
	}()
	return out
}

func (g *GoogleAdapter) buildConfig(req ChatRequest, hasImages bool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 && !hasImages {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toGenaiFunctionDeclarations(req.Tools)}}
	}
	if req.Thinking && !hasImages {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return config
}

func hasInlineImages(msgs []models.Message) bool {
	for _, m := range msgs {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}

func toGenaiContents(msgs []models.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			parts := []*genai.Part{genai.NewPartFromText(m.Content)}
			for _, img := range m.Images {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
			}
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: parts})
		case models.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Input, &args)
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case models.RoleTool:
			var parts []*genai.Part
			for _, tr := range m.ToolResults {
				parts = append(parts, genai.NewPartFromFunctionResponse(tr.Name, map[string]any{"result": tr.Content}))
			}
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: parts})
		}
	}
	return out
}

func toGenaiFunctionDeclarations(tools []ToolSchema) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		out = append(out, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return out
}

func fromGenaiResponse(resp *genai.GenerateContentResponse) ChatResponse {
	var out ChatResponse
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			input, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{Name: part.FunctionCall.Name, Input: input})
		case part.Thought:
			out.Thinking += part.Text
		case part.Text != "":
			out.Content += part.Text
		}
	}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	return out
}

func classifyGoogleErr(model string, err error) error {
	var apiErr genai.APIError
	if asGenaiAPIError(err, &apiErr) {
		return NewError("google", model, apiErr.Code, fmt.Errorf("%s", apiErr.Message))
	}
	return WrapTransport("google", model, err)
}

func asGenaiAPIError(err error, target *genai.APIError) bool {
	if apiErr, ok := err.(genai.APIError); ok {
		*target = apiErr
		return true
	}
	return false
}

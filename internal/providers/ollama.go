package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// OllamaAdapter speaks the native Ollama /api/chat dialect: system folded
// as a leading system message, raw base64 image strings, and a capability
// query via /api/show rather than a name heuristic.
type OllamaAdapter struct {
	base
	baseURL string
	http    *http.Client
}

func NewOllamaAdapter(baseURL string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaAdapter{
		base:    newBase("ollama"),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
}

func (o *OllamaAdapter) Name() string { return "ollama" }

type ollamaShowResponse struct {
	Capabilities []string `json:"capabilities"`
}

// Capabilities queries /api/show; on failure it falls back to the name
// heuristic rather than failing the call outright.
func (o *OllamaAdapter) Capabilities(modelID string) Capabilities {
	body, _ := json.Marshal(map[string]string{"model": modelID})
	req, err := http.NewRequest(http.MethodPost, o.baseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return heuristicCapabilities(modelID)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.http.Do(req)
	if err != nil {
		return heuristicCapabilities(modelID)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return heuristicCapabilities(modelID)
	}
	var show ollamaShowResponse
	if err := json.NewDecoder(resp.Body).Decode(&show); err != nil {
		return heuristicCapabilities(modelID)
	}
	caps := Capabilities{}
	for _, c := range show.Capabilities {
		switch c {
		case "tools":
			caps.Tools = true
		case "vision":
			caps.Vision = true
		case "thinking":
			caps.Thinking = true
		case "insert", "completion":
		}
	}
	return caps
}

type ollamaMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Images    []string        `json:"images,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaFunctionSpec `json:"function"`
}

type ollamaFunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Think    bool            `json:"think,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Role      string           `json:"role"`
		Content   string           `json:"content"`
		Thinking  string           `json:"thinking"`
		ToolCalls []ollamaToolCall `json:"tool_calls"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

func (o *OllamaAdapter) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return o.retry(ctx, func(attempt int) (ChatResponse, error) {
		return o.once(ctx, req)
	})
}

func (o *OllamaAdapter) once(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	body := o.buildRequest(req, false)
	payload, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, WrapTransport("ollama", req.Model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(httpReq)
	if err != nil {
		return ChatResponse{}, WrapTransport("ollama", req.Model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, NewError("ollama", req.Model, resp.StatusCode, fmt.Errorf("ollama http %d", resp.StatusCode))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResponse{}, WrapTransport("ollama", req.Model, err)
	}
	if out.Error != "" {
		return ChatResponse{}, &Error{Kind: KindBadRequest, Provider: "ollama", Model: req.Model, Message: out.Error}
	}

	return fromOllamaResponse(out), nil
}

func (o *OllamaAdapter) Stream(ctx context.Context, req ChatRequest) <-chan StreamChunk {
	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)

		body := o.buildRequest(req, true)
		payload, _ := json.Marshal(body)

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			out <- StreamChunk{Kind: ChunkDone, Err: WrapTransport("ollama", req.Model, err)}
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.http.Do(httpReq)
		if err != nil {
			out <- StreamChunk{Kind: ChunkDone, Err: WrapTransport("ollama", req.Model, err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			out <- StreamChunk{Kind: ChunkDone, Err: NewError("ollama", req.Model, resp.StatusCode, fmt.Errorf("ollama http %d", resp.StatusCode))}
			return
		}

		var toolCalls []models.ToolCall
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Message.Content != "" {
				out <- StreamChunk{Kind: ChunkContentDelta, Delta: chunk.Message.Content}
			}
			if chunk.Message.Thinking != "" {
				out <- StreamChunk{Kind: ChunkThinkingDelta, Delta: chunk.Message.Thinking}
			}
			if len(chunk.Message.ToolCalls) > 0 {
				for _, tc := range chunk.Message.ToolCalls {
					input, _ := json.Marshal(tc.Function.Arguments)
					toolCalls = append(toolCalls, models.ToolCall{Name: tc.Function.Name, Input: input})
				}
			}
			if chunk.Done {
				break
			}
		}
		if len(toolCalls) > 0 {
			out <- StreamChunk{Kind: ChunkToolCallsReady, ToolCalls: toolCalls}
		}
		out <- StreamChunk{Kind: ChunkDone}
	}()
	return out
}

func (o *OllamaAdapter) buildRequest(req ChatRequest, stream bool) ollamaChatRequest {
	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleUser:
			om := ollamaMessage{Role: "user", Content: m.Content}
			for _, img := range m.Images {
				om.Images = append(om.Images, encodeB64(img.Data))
			}
			messages = append(messages, om)
		case models.RoleAssistant:
			om := ollamaMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Input, &args)
				om.ToolCalls = append(om.ToolCalls, ollamaToolCall{Function: ollamaFunctionCall{Name: tc.Name, Arguments: args}})
			}
			messages = append(messages, om)
		case models.RoleTool:
			for _, tr := range m.ToolResults {
				messages = append(messages, ollamaMessage{Role: "tool", Content: tr.Content, ToolName: tr.Name})
			}
		}
	}

	var tools []ollamaTool
	for _, t := range req.Tools {
		tools = append(tools, ollamaTool{
			Type: "function",
			Function: ollamaFunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return ollamaChatRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    tools,
		Think:    req.Thinking,
		Stream:   stream,
		Options:  req.Options,
	}
}

func fromOllamaResponse(r ollamaChatResponse) ChatResponse {
	resp := ChatResponse{
		Content:    r.Message.Content,
		Thinking:   r.Message.Thinking,
		StopReason: r.DoneReason,
	}
	for _, tc := range r.Message.ToolCalls {
		input, _ := json.Marshal(tc.Function.Arguments)
		resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{Name: tc.Function.Name, Input: input})
	}
	return resp
}

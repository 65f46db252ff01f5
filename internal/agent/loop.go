// Package agent implements the tool-calling loop, the sub-agent runner, and
// the debate orchestrator (§4.5-§4.7): the three call shapes that turn a
// conversation plus a model reference into a finished reply.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/contextbudget"
	"github.com/haasonsaas/nexus-assistant/internal/providers"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// noToolInstruction is appended to the system prompt whenever the resolved
// model's Capabilities report Tools: false, per §4.2's feature gating: tools
// are elided from the request entirely rather than sent and ignored.
const noToolInstruction = "\n\nThis model has no tool-calling support. Do not emit tool-call syntax or claim to invoke a tool; answer directly from what you already know."

// imageAttachedMarker replaces a user message's Images once the round that
// produced them has finished: no image payload survives into the persisted
// message list past the round it arrived in.
const imageAttachedMarker = "[image attached]"

// cancelledMarker is appended to the current content when /stop or /abort is
// observed between tool batches (§4.5, §7).
const cancelledMarker = "(processing cancelled)"

func appendCancelledMarker(content string) string {
	if content == "" {
		return cancelledMarker
	}
	return content + " " + cancelledMarker
}

// ToolSet binds a tool registry to the privilege tier the current caller is
// entitled to: the main loop passes tools.TierMain and sees the full
// catalog, the sub-agent runner passes tools.TierSubagent and sees only the
// shared subset.
type ToolSet struct {
	Registry *tools.Registry
	Tier     tools.Tier
}

func (s *ToolSet) schemas() []providers.ToolSchema {
	if s == nil || s.Registry == nil {
		return nil
	}
	return s.Registry.Schemas(s.Tier)
}

func (s *ToolSet) run(ctx context.Context, name string, args map[string]any) (string, bool) {
	return s.Registry.Run(ctx, s.Tier, name, args)
}

// SwitchInfo is attached to a Result when a fallback model produced the
// final response, so the ingress can tell the user their request was
// rerouted (§4.5).
type SwitchInfo struct {
	Model  string
	Reason string
}

// Result is what one Run invocation produces.
type Result struct {
	Content    string
	Thinking   string
	SentImage  bool
	Switch     *SwitchInfo
	Cancelled  bool
}

// Loop runs the tool-calling state machine against a Dispatcher, a context
// budgeter, and a cancellation registry.
type Loop struct {
	Dispatcher      *providers.Dispatcher
	Summarizer      contextbudget.Summarizer
	Cancel          *cancel.Registry
	GlobalFallbacks []string
}

func NewLoop(dispatcher *providers.Dispatcher, summarizer contextbudget.Summarizer, cancelRegistry *cancel.Registry, globalFallbacks []string) *Loop {
	return &Loop{
		Dispatcher:      dispatcher,
		Summarizer:      summarizer,
		Cancel:          cancelRegistry,
		GlobalFallbacks: globalFallbacks,
	}
}

// Run executes the state machine described in §4.5 against sess.Messages,
// mutating it in place with the assistant/tool turns produced, and returns
// the user-facing outcome.
func (l *Loop) Run(ctx context.Context, sess *models.Session, toolset *ToolSet, opts LoopOptions) (Result, error) {
	roundCap := opts.roundCap()
	platform, userID := sess.Platform, sess.UserID

	var thinkingTotal, contentTotal strings.Builder
	sentImage := false
	nudged := false
	var switchInfo *SwitchInfo

	resolved, err := l.Dispatcher.Resolve(sess.Model)
	if err != nil {
		return Result{}, err
	}
	numCtx := resolved.Provider.NumCtx
	if numCtx <= 0 {
		numCtx = 8192
	}

	// No image payload survives past the round that produced it (§3): once
	// Run returns, by whatever path, strip Images from every message and
	// rewrite the text to carry a marker instead.
	defer stripImages(sess)

	schemas := toolset.schemas()

	for round := 0; ; round++ {
		if contextbudget.NeedsCompaction(sess.SystemPrompt, schemas, sess.Messages, models.Message{}, numCtx, contextbudget.DefaultContextQuota) {
			sess.Messages = contextbudget.Compact(ctx, l.Summarizer, sess.SystemPrompt, sess.Messages, numCtx)
		}
		sess.Messages = contextbudget.HardTrim(sess.SystemPrompt, schemas, sess.Messages, numCtx)

		resp, usedModel, sw, err := l.callWithFallback(ctx, resolved, sess.SystemPrompt, sess.Messages, schemas, opts)
		if err != nil {
			return Result{}, fmt.Errorf("agent loop: %w", err)
		}
		if sw != nil {
			switchInfo = sw
			resolved, _ = l.Dispatcher.Resolve(usedModel)
		}

		// Some models emit a requested tool call as <tool_call>{...}</tool_call>
		// text rather than the provider's native structured field; recognize
		// that fallback shape before deciding whether this round is terminal.
		if len(resp.ToolCalls) == 0 {
			if stripped, calls := extractXMLToolCalls(resp.Content); len(calls) > 0 {
				resp.Content = stripped
				resp.ToolCalls = calls
			}
		}

		// resp.Thinking/resp.Content were already streamed to opts.Observer
		// delta-by-delta inside streamComplete; only the running totals are
		// accumulated here.
		thinkingTotal.WriteString(resp.Thinking)

		if len(resp.ToolCalls) == 0 {
			assistantMsg := models.Message{Role: models.RoleAssistant, Content: resp.Content, Thinking: resp.Thinking, CreatedAt: now()}
			sess.Append(assistantMsg)
			contentTotal.WriteString(resp.Content)

			if strings.TrimSpace(contentTotal.String()) == "" && !sentImage && !nudged {
				nudged = true
				sess.Append(models.Message{Role: models.RoleUser, Content: "Give your final answer now.", CreatedAt: now()})
				continue
			}
			break
		}

		sess.Append(models.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			Thinking:  resp.Thinking,
			ToolCalls: resp.ToolCalls,
			CreatedAt: now(),
		})
		contentTotal.WriteString(resp.Content)

		if l.checkCancelled(platform, userID) {
			sess.Append(models.Message{Role: models.RoleAssistant, Content: cancelledMarker, CreatedAt: now()})
			finalContent := appendCancelledMarker(contentTotal.String())
			return Result{Content: finalContent, Thinking: thinkingTotal.String(), Cancelled: true, Switch: switchInfo}, nil
		}

		toolNames := make([]string, len(resp.ToolCalls))
		for i, call := range resp.ToolCalls {
			toolNames[i] = call.Name
		}
		opts.notifyToolCalls(toolNames)

		for _, call := range resp.ToolCalls {
			var args map[string]any
			_ = decodeArgs(call.Input, &args)
			result, isErr := toolset.run(ctx, call.Name, args)
			sess.Append(models.Message{
				Role:        models.RoleTool,
				ToolResults: []models.ToolResult{{ToolCallID: call.ID, Name: call.Name, Content: result, IsError: isErr}},
				CreatedAt:   now(),
			})
			if call.Name == "send_image" && !isErr {
				sentImage = true
			}
		}

		if round+1 >= roundCap {
			wrapUp := l.wrapUp(ctx, resolved, sess.SystemPrompt, sess, opts)
			return Result{Content: wrapUp, Thinking: thinkingTotal.String(), SentImage: sentImage, Switch: switchInfo}, nil
		}
	}

	finalContent := contentTotal.String()
	if sentImage {
		finalContent = ""
	}
	return Result{Content: finalContent, Thinking: thinkingTotal.String(), SentImage: sentImage, Switch: switchInfo}, nil
}

// buildChatRequest assembles the uniform request for r, applying §4.2's
// feature gating: a model whose Capabilities report !Tools never sees tool
// schemas, and gets a system instruction forbidding tool-call syntax
// instead; thinking is requested only when the model supports it; image
// content is dropped from history for a model with no vision support.
func buildChatRequest(r providers.Resolved, system string, history []models.Message, schemas []providers.ToolSchema, thinking bool) providers.ChatRequest {
	caps := r.Adapter.Capabilities(r.ModelID)

	if !caps.Tools {
		schemas = nil
		system += noToolInstruction
	}
	if !caps.Vision {
		history = stripImagesForRequest(history)
	}

	return providers.ChatRequest{
		Model:    r.ModelID,
		System:   system,
		Messages: history,
		Tools:    schemas,
		Thinking: thinking && caps.Thinking,
		Options:  r.Options,
		NumCtx:   r.Provider.NumCtx,
	}
}

// stripImagesForRequest returns history unchanged when nothing carries
// images, otherwise a shallow copy with every message's Images cleared —
// sess.Messages itself is never mutated here, only the outgoing request.
func stripImagesForRequest(history []models.Message) []models.Message {
	hasImages := false
	for _, m := range history {
		if len(m.Images) > 0 {
			hasImages = true
			break
		}
	}
	if !hasImages {
		return history
	}
	out := make([]models.Message, len(history))
	copy(out, history)
	for i := range out {
		out[i].Images = nil
	}
	return out
}

// streamComplete drives adapter through its streaming call rather than
// Complete: §4.5's "streaming variant" is the identical state machine with
// every token delta emitted as a chunk event, so the tool-calling loop uses
// Stream unconditionally and forwards deltas through opts.Observer as they
// arrive, assembling the consolidated ChatResponse the rest of the loop acts
// on once the channel closes.
func streamComplete(ctx context.Context, adapter providers.Adapter, req providers.ChatRequest, opts LoopOptions) (providers.ChatResponse, error) {
	var thinking, content strings.Builder
	var toolCalls []models.ToolCall
	var streamErr error

	for chunk := range adapter.Stream(ctx, req) {
		switch chunk.Kind {
		case providers.ChunkThinkingDelta:
			thinking.WriteString(chunk.Delta)
			opts.notifyThinking(chunk.Delta)
		case providers.ChunkContentDelta:
			content.WriteString(chunk.Delta)
			opts.notifyContent(chunk.Delta)
		case providers.ChunkToolCallsReady:
			toolCalls = chunk.ToolCalls
		case providers.ChunkDone:
			if chunk.Err != nil {
				streamErr = chunk.Err
			}
		}
	}
	if streamErr != nil {
		return providers.ChatResponse{}, streamErr
	}
	return providers.ChatResponse{Content: content.String(), Thinking: thinking.String(), ToolCalls: toolCalls}, nil
}

// callWithFallback attempts the originally-resolved model; each adapter
// call already retries transient errors internally (internal/providers'
// base.retry), so a returned error here means that model is exhausted and
// the next fallback should be tried. The per-provider fallback list is
// tried first, then the global list, each once (§4.5).
func (l *Loop) callWithFallback(ctx context.Context, resolved providers.Resolved, system string, history []models.Message, schemas []providers.ToolSchema, opts LoopOptions) (providers.ChatResponse, string, *SwitchInfo, error) {
	candidates := append([]string{resolved.ProviderName + "/" + resolved.ModelID}, providers.Fallbacks(resolved.Provider, l.GlobalFallbacks)...)

	var lastErr error
	for i, ref := range candidates {
		r := resolved
		if i > 0 {
			var err error
			r, err = l.Dispatcher.Resolve(ref)
			if err != nil {
				lastErr = err
				continue
			}
		}

		req := buildChatRequest(r, system, history, schemas, r.Provider.Think)
		resp, err := streamComplete(ctx, r.Adapter, req, opts)
		if err == nil {
			if i == 0 {
				return resp, ref, nil, nil
			}
			return resp, ref, &SwitchInfo{Model: ref, Reason: lastErr.Error()}, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrNoFallbackAvailable
	}
	return providers.ChatResponse{}, "", nil, fmt.Errorf("%w: %v", ErrNoFallbackAvailable, lastErr)
}

// wrapUp is invoked when the round cap is hit with no terminal content: it
// appends a directive message forbidding "still running" language and
// overwrites accumulated content with the response (§4.5).
func (l *Loop) wrapUp(ctx context.Context, resolved providers.Resolved, system string, sess *models.Session, opts LoopOptions) string {
	sess.Append(models.Message{
		Role: models.RoleUser,
		Content: "You have run out of further tool-calling rounds. Do not say you are " +
			"\"still working\" or \"in progress\" — give a factual summary of what you " +
			"completed and what remains undone.",
		CreatedAt: now(),
	})
	req := buildChatRequest(resolved, system, sess.Messages, nil, resolved.Provider.Think)
	resp, err := streamComplete(ctx, resolved.Adapter, req, opts)
	if err != nil {
		return "Ran out of tool-calling rounds and could not produce a wrap-up summary."
	}
	sess.Append(models.Message{Role: models.RoleAssistant, Content: resp.Content, Thinking: resp.Thinking, CreatedAt: now()})
	return resp.Content
}

// stripImages clears Images from every message in sess still carrying them
// and appends imageAttachedMarker to that message's text, so a later round
// (in this turn or a future one) never re-sends the raw payload to a
// provider.
func stripImages(sess *models.Session) {
	for i := range sess.Messages {
		if len(sess.Messages[i].Images) == 0 {
			continue
		}
		sess.Messages[i].Images = nil
		if sess.Messages[i].Content == "" {
			sess.Messages[i].Content = imageAttachedMarker
		} else {
			sess.Messages[i].Content += "\n" + imageAttachedMarker
		}
	}
}

func (l *Loop) checkCancelled(platform, userID string) bool {
	if l.Cancel == nil {
		return false
	}
	level := l.Cancel.Consume(platform, userID)
	return level != cancel.None
}

// now is a thin indirection so tests can override the clock without this
// package reaching for time.Now() in more than one place.
var now = time.Now

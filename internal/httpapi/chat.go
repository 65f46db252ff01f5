package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus-assistant/internal/agent"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

const webPlatform = "web"

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ndjsonWriter emits one JSON object per line, flushing after each write so
// the client sees events as they happen rather than buffered until the
// response closes.
type ndjsonWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	return &ndjsonWriter{w: w, flusher: flusher}
}

func (n *ndjsonWriter) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := n.w.Write(data); err != nil {
		return
	}
	if n.flusher != nil {
		n.flusher.Flush()
	}
}

// streamObserver adapts agent.Observer to the NDJSON event shapes of §4.12,
// writing content/thinking/tool_call chunks as the loop produces them.
type streamObserver struct {
	out       *ndjsonWriter
	sessionID string
}

func (o *streamObserver) OnThinking(delta string) {
	o.out.write(map[string]any{"type": "thinking", "delta": delta, "session_id": o.sessionID})
}

func (o *streamObserver) OnContent(delta string) {
	o.out.write(map[string]any{"type": "content", "delta": delta, "session_id": o.sessionID})
}

func (o *streamObserver) OnToolCalls(names []string) {
	o.out.write(map[string]any{"type": "tool_call", "tools": names, "session_id": o.sessionID})
}

var _ agent.Observer = (*streamObserver)(nil)

// handleChatStream implements POST /api/chat/stream: an inbound
// {message, session_id?} drives one Session Manager turn, and the turn's
// events are written as NDJSON as they occur, finishing with a single
// "done" object carrying the turn's full result.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	out := newNDJSONWriter(w)
	out.write(map[string]any{"type": "status", "message": "processing", "session_id": sessionID})

	obs := &streamObserver{out: out, sessionID: sessionID}
	result, err := s.manager.HandleMessage(r.Context(), webPlatform, sessionID, "", req.Message, nil, obs)
	if err != nil {
		out.write(map[string]any{"type": "status", "message": "error: " + err.Error(), "session_id": sessionID})
		return
	}

	done := map[string]any{
		"type":         "done",
		"thinking":     result.Thinking,
		"content":      result.Content,
		"new_messages": newMessagesPayload(result.NewMessages),
		"session_id":   sessionID,
	}
	if result.Switch != nil {
		done["switch_info"] = map[string]any{"model": result.Switch.Model, "reason": result.Switch.Reason}
	}
	if result.Clear {
		done["clear"] = true
	}
	out.write(done)
}

func newMessagesPayload(msgs []models.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"role":       m.Role,
			"content":    m.Content,
			"created_at": m.CreatedAt,
		})
	}
	return out
}

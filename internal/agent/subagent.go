package agent

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// SubAgentRunner spawns a nested loop invocation satisfying
// tools.SubAgentRunner, giving the invoke_model tool a way to delegate a
// task to an independent model call without internal/tools importing this
// package (§4.6).
type SubAgentRunner struct {
	Loop        *Loop
	Registry    *tools.Registry
	Workspace   string
	DefaultFrom models.ChatSurface // sets only the sub-agent session's Surface; the session has no platform/user identity of the parent, so the parent's cancellation flag is not checked during a sub-agent run
}

func NewSubAgentRunner(loop *Loop, registry *tools.Registry, workspace string) *SubAgentRunner {
	return &SubAgentRunner{Loop: loop, Registry: registry, Workspace: workspace}
}

// Run satisfies tools.SubAgentRunner. It builds a fresh, throwaway session
// seeded with a sub-agent system prompt, runs the loop with the reduced
// tool set and an independent round cap, and collapses the result to a
// single string per §4.6: final content, or accumulated thinking if
// content is empty, or "(no answer)".
func (s *SubAgentRunner) Run(ctx context.Context, modelRef, message string) (string, error) {
	return s.RunWithSystem(ctx, modelRef, s.buildSystemPrompt(), message)
}

// RunWithSystem is the same as Run but with a caller-supplied system
// prompt, used by the debate orchestrator to give each side a
// role-scoped persona while still going through the reduced tool set and
// the independent round cap (§4.7).
func (s *SubAgentRunner) RunWithSystem(ctx context.Context, modelRef, systemPrompt, message string) (string, error) {
	sess := models.NewSession(uuid.NewString(), "", "subagent")
	sess.Model = modelRef
	sess.SystemPrompt = systemPrompt
	sess.Surface = s.DefaultFrom
	sess.Append(models.Message{Role: models.RoleUser, Content: message})

	toolset := &ToolSet{Registry: s.Registry, Tier: tools.TierSubagent}

	result, err := s.Loop.Run(ctx, sess, toolset, LoopOptions{RoundCap: DefaultRoundCap})
	if err != nil {
		return "", fmt.Errorf("sub-agent invocation: %w", err)
	}

	if strings.TrimSpace(result.Content) != "" {
		return result.Content, nil
	}
	if strings.TrimSpace(result.Thinking) != "" {
		return result.Thinking, nil
	}
	return "(no answer)", nil
}

// buildSystemPrompt augments the sub-agent persona with today's date, a
// training-cutoff warning, root/sudo context, and the workspace path, per
// §4.6. The persona text itself is layered in by the Session Manager for
// the main loop; a sub-agent has no session manager, so it is composed
// directly here.
func (s *SubAgentRunner) buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a focused sub-agent invoked to complete one delegated task. ")
	b.WriteString("Answer directly and completely; there is no further back-and-forth with a human.\n\n")
	fmt.Fprintf(&b, "Today's date is %s.\n", time.Now().Format("2006-01-02"))
	b.WriteString("Your training data has a cutoff date; treat anything after it as unknown until verified with a tool.\n")
	fmt.Fprintf(&b, "Runtime: %s/%s. You have the same exec privileges as the primary process (root/sudo in a container, unrestricted shell locally).\n", runtime.GOOS, runtime.GOARCH)
	if s.Workspace != "" {
		fmt.Fprintf(&b, "Workspace directory: %s\n", s.Workspace)
	}
	return b.String()
}

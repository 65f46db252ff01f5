package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// AutonomousRunner satisfies scheduler.Runner: it gives a fired scheduled
// job a fresh session and the full main-loop tool set (§4.9 fires with the
// same tool access as an interactive turn, unlike the reduced sub-agent
// set).
type AutonomousRunner struct {
	Loop         *Loop
	Registry     *tools.Registry
	DefaultModel string
}

func NewAutonomousRunner(loop *Loop, registry *tools.Registry, defaultModel string) *AutonomousRunner {
	return &AutonomousRunner{Loop: loop, Registry: registry, DefaultModel: defaultModel}
}

// RunAutonomous satisfies scheduler.Runner.
func (a *AutonomousRunner) RunAutonomous(ctx context.Context, modelRef, systemPreamble, prompt string) (string, error) {
	model := modelRef
	if model == "" {
		model = a.DefaultModel
	}

	sess := models.NewSession(uuid.NewString(), "", "scheduler")
	sess.Model = model
	sess.SystemPrompt = systemPreamble
	sess.Append(models.Message{Role: models.RoleUser, Content: prompt})

	toolset := &ToolSet{Registry: a.Registry, Tier: tools.TierMain}
	result, err := a.Loop.Run(ctx, sess, toolset, LoopOptions{RoundCap: DefaultRoundCap})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(result.Content) == "" {
		return "(no output)", nil
	}
	return result.Content, nil
}

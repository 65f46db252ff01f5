package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus-assistant/internal/agent"
	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// command is a parsed slash-command: its name and the raw remainder of the
// line, unsplit (individual handlers tokenize further as needed).
type command struct {
	name string
	rest string
}

// parseCommand reports whether text is a slash-command and, if so, its
// parsed form. A bare "/" with no command name is not a command.
func parseCommand(text string) (command, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return command{}, false
	}
	body := strings.TrimPrefix(trimmed, "/")
	name, rest, _ := strings.Cut(body, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return command{}, false
	}
	return command{name: name, rest: strings.TrimSpace(rest)}, true
}

// runCommand executes a parsed slash-command synchronously and returns its
// reply as a single done-shaped TurnResult (§4.12: "when the inbound
// message is a slash-command it is executed synchronously and returned as
// a single done chunk").
func (m *Manager) runCommand(ctx context.Context, sess *models.Session, cmd command) (TurnResult, error) {
	switch cmd.name {
	case "model":
		return m.cmdModel(sess, cmd.rest)
	case "models":
		return TurnResult{Content: m.cmdModels(cmd.rest)}, nil
	case "new":
		return m.cmdNew(sess)
	case "schedules":
		return TurnResult{Content: m.cmdSchedules()}, nil
	case "schedule":
		return TurnResult{Content: m.cmdScheduleRemove(cmd.rest)}, nil
	case "auth":
		return TurnResult{Content: m.cmdAuth(cmd.rest)}, nil
	case "stop":
		m.requestCancel(sess.Platform, sess.UserID, cancel.Stop)
		return TurnResult{Content: "stopping after the current round"}, nil
	case "abort":
		m.requestCancel(sess.Platform, sess.UserID, cancel.Abort)
		return TurnResult{Content: "aborting"}, nil
	default:
		return TurnResult{Content: fmt.Sprintf("unknown command /%s", cmd.name)}, nil
	}
}

// cmdModel with no argument reports the session's current model; with an
// argument it performs the model switch described in §4.8: alias
// resolution, an existence check against the provider's configured model
// catalog (Default and List; the provider's live model list is not queried),
// system-prompt reconstruction, history clearing, and a single warmup turn.
func (m *Manager) cmdModel(sess *models.Session, arg string) (TurnResult, error) {
	if arg == "" {
		return TurnResult{Content: fmt.Sprintf("current model: %s", sess.Model)}, nil
	}

	resolved, err := m.dispatcher.Resolve(arg)
	if err != nil {
		return TurnResult{Content: fmt.Sprintf("error: %s", err)}, nil
	}
	if !modelExists(resolved.Provider.Models, resolved.ModelID) {
		return TurnResult{Content: fmt.Sprintf("error: model %q is not in provider %q's catalog", resolved.ModelID, resolved.ProviderName)}, nil
	}

	modelRef := resolved.ProviderName + "/" + resolved.ModelID
	sess.ResetWithModel(modelRef, buildSystemPrompt(m.cfg, m.now(), m.memoryExcerpt(sess.Platform, sess.UserID)))

	greeting, err := m.warmup(sess)
	if err != nil {
		return TurnResult{Content: fmt.Sprintf("switched to %s, but the warmup turn failed: %s", modelRef, err)}, nil
	}
	return TurnResult{Content: fmt.Sprintf("%s (model: %s)", greeting, modelRef), Clear: true}, nil
}

func modelExists(catalog models.ModelCatalog, modelID string) bool {
	if catalog.Default == modelID {
		return true
	}
	for _, m := range catalog.List {
		if m == modelID {
			return true
		}
	}
	return false
}

// warmup runs a minimal "say hello" turn against the just-switched model so
// the user sees a confirmation in its voice.
func (m *Manager) warmup(sess *models.Session) (string, error) {
	sess.Append(models.Message{Role: models.RoleUser, Content: "say hello", CreatedAt: m.now()})
	toolset := &agent.ToolSet{Registry: m.registry, Tier: tools.TierMain}
	result, err := m.loop.Run(context.Background(), sess, toolset, agent.LoopOptions{RoundCap: agent.DefaultRoundCap})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (m *Manager) cmdModels(provider string) string {
	if provider != "" {
		catalog, ok := m.dispatcher.ModelsFor(provider)
		if !ok {
			return fmt.Sprintf("error: unknown provider %q", provider)
		}
		return formatCatalog(provider, catalog)
	}

	var b strings.Builder
	for _, name := range m.dispatcher.ProviderNames() {
		catalog, ok := m.dispatcher.ModelsFor(name)
		if !ok {
			continue
		}
		fmt.Fprintln(&b, formatCatalog(name, catalog))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCatalog(provider string, catalog models.ModelCatalog) string {
	list := catalog.List
	if len(list) == 0 {
		list = []string{catalog.Default}
	}
	return fmt.Sprintf("%s: %s (default: %s)", provider, strings.Join(list, ", "), catalog.Default)
}

// cmdNew rebuilds the session identically to a model switch but without
// changing the model (§4.8).
func (m *Manager) cmdNew(sess *models.Session) (TurnResult, error) {
	sess.SystemPrompt = buildSystemPrompt(m.cfg, m.now(), m.memoryExcerpt(sess.Platform, sess.UserID))
	sess.Reset()
	return TurnResult{Content: "started a new conversation", Clear: true}, nil
}

func (m *Manager) cmdSchedules() string {
	if m.scheduler == nil {
		return "scheduling is not enabled"
	}
	jobs := m.scheduler.List()
	if len(jobs) == 0 {
		return "no scheduled jobs"
	}
	var b strings.Builder
	for _, j := range jobs {
		trigger := j.CronExpr
		if trigger == "" {
			trigger = j.At.Format("2006-01-02T15:04:05Z07:00")
		}
		fmt.Fprintf(&b, "%s | %s | %s\n", j.ID, trigger, j.Prompt)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Manager) cmdScheduleRemove(rest string) string {
	name, id, _ := strings.Cut(rest, " ")
	if strings.ToLower(strings.TrimSpace(name)) != "remove" || strings.TrimSpace(id) == "" {
		return "usage: /schedule remove <id>"
	}
	if m.scheduler == nil {
		return "scheduling is not enabled"
	}
	if err := m.scheduler.Remove(strings.TrimSpace(id)); err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("removed job %s", id)
}

func (m *Manager) cmdAuth(code string) string {
	if m.pairing == nil || strings.TrimSpace(code) == "" {
		return "usage: /auth <code>"
	}
	identity, err := m.pairing.Redeem(code)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("authorized %s/%s", identity.Platform, identity.UserID)
}

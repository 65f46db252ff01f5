package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/nexus-assistant/internal/cancel"
	"github.com/haasonsaas/nexus-assistant/internal/tools"
	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// DebateSink is the narrow capability the debate orchestrator needs to
// assert a typing/"still working" signal on the bound chat surface between
// rounds (§4.7, §4.10).
type DebateSink interface {
	StatusUpdate(ctx context.Context, surface models.ChatSurface, message string) error
}

// DebateOrchestrator drives the `debate` tool: two perspectives argued
// across N rounds, each round summarised by a neutral pass, ending in a
// final synthesis. The transcript is written incrementally so a cancelled
// or crashed run still leaves a usable partial record.
type DebateOrchestrator struct {
	Runner    *SubAgentRunner
	Cancel    *cancel.Registry
	Sink      DebateSink
	Workspace string
}

func NewDebateOrchestrator(runner *SubAgentRunner, cancelRegistry *cancel.Registry, sink DebateSink, workspace string) *DebateOrchestrator {
	return &DebateOrchestrator{Runner: runner, Cancel: cancelRegistry, Sink: sink, Workspace: workspace}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	if slug == "" {
		slug = "debate"
	}
	return slug
}

// Run satisfies tools.DebateRunner. The returned string is the final
// synthesis followed by the number of completed rounds and the transcript
// path, e.g. "<conclusion>\n\n(3 rounds, transcript: <path>)".
func (d *DebateOrchestrator) Run(ctx context.Context, topic, perspectiveA, perspectiveB string, debateModels []string, rounds int, language string) (string, error) {
	modelA, modelB := pickDebateModels(debateModels)

	transcriptPath := filepath.Join(d.Workspace, fmt.Sprintf("debate-%s-%d.md", slugify(topic), time.Now().Unix()))
	if err := os.MkdirAll(d.Workspace, 0o755); err != nil {
		return "", fmt.Errorf("debate: create workspace: %w", err)
	}

	transcript := &strings.Builder{}
	fmt.Fprintf(transcript, "# Debate: %s\n\n", topic)
	fmt.Fprintf(transcript, "- Side A (%s): %s\n", modelA, perspectiveA)
	fmt.Fprintf(transcript, "- Side B (%s): %s\n", modelB, perspectiveB)
	fmt.Fprintf(transcript, "- Language: %s\n\n", language)
	if err := d.flush(transcriptPath, transcript.String()); err != nil {
		return "", err
	}

	surface, _ := tools.SurfaceFromContext(ctx)
	platform, userID := "", ""
	if surface.Bound() {
		platform, userID = surface.Platform, surface.UserID
	}

	completedRounds := 0
	var roundSummaries []string
	for round := 1; round <= rounds; round++ {
		d.assertStatus(ctx, surface, fmt.Sprintf("debate round %d/%d...", round, rounds))

		priorContext := strings.Join(roundSummaries, "\n\n")
		aPrompt := buildSidePrompt(topic, perspectiveA, priorContext, language)
		aSystem := fmt.Sprintf("You are arguing side A of a structured debate. Perspective: %s. Respond in %s.", perspectiveA, language)
		sideA, err := d.Runner.RunWithSystem(ctx, modelA, aSystem, aPrompt)
		if err != nil {
			return d.abort(transcriptPath, transcript, completedRounds, err)
		}
		fmt.Fprintf(transcript, "## Round %d\n\n### Side A\n\n%s\n\n", round, sideA)
		if err := d.flush(transcriptPath, transcript.String()); err != nil {
			return "", err
		}

		if d.cancelled(platform, userID) {
			return d.abort(transcriptPath, transcript, completedRounds, nil)
		}

		bPrompt := buildSidePrompt(topic, perspectiveB, priorContext+"\n\n"+sideA, language)
		bSystem := fmt.Sprintf("You are arguing side B of a structured debate. Perspective: %s. Respond in %s.", perspectiveB, language)
		sideB, err := d.Runner.RunWithSystem(ctx, modelB, bSystem, bPrompt)
		if err != nil {
			return d.abort(transcriptPath, transcript, completedRounds, err)
		}
		fmt.Fprintf(transcript, "### Side B\n\n%s\n\n", sideB)
		if err := d.flush(transcriptPath, transcript.String()); err != nil {
			return "", err
		}

		summary, err := d.Runner.RunWithSystem(ctx, modelA,
			"You are a neutral summarizer. Condense this debate round into a short, even-handed paragraph.",
			fmt.Sprintf("Side A said:\n%s\n\nSide B said:\n%s", sideA, sideB))
		if err != nil {
			summary = "(summary unavailable)"
		}
		fmt.Fprintf(transcript, "### Round summary\n\n%s\n\n", summary)
		if err := d.flush(transcriptPath, transcript.String()); err != nil {
			return "", err
		}
		roundSummaries = append(roundSummaries, summary)
		completedRounds = round

		if d.cancelled(platform, userID) {
			return d.abort(transcriptPath, transcript, completedRounds, nil)
		}
	}

	d.assertStatus(ctx, surface, "synthesizing debate conclusion...")
	conclusion, err := d.Runner.RunWithSystem(ctx, modelA,
		"You are a neutral synthesizer. Produce a final, balanced conclusion from this debate.",
		fmt.Sprintf("Topic: %s\n\nRound summaries:\n%s", topic, strings.Join(roundSummaries, "\n\n")))
	if err != nil {
		conclusion = "(no conclusion reached)"
	}
	fmt.Fprintf(transcript, "## Conclusion\n\n%s\n", conclusion)
	if err := d.flush(transcriptPath, transcript.String()); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s\n\n(%d rounds, transcript: %s)", conclusion, completedRounds, transcriptPath), nil
}

func (d *DebateOrchestrator) abort(path string, transcript *strings.Builder, completedRounds int, cause error) (string, error) {
	fmt.Fprintf(transcript, "## Aborted at round %d\n\n", completedRounds)
	if cause != nil {
		fmt.Fprintf(transcript, "Reason: %s\n", cause.Error())
	}
	_ = d.flush(path, transcript.String())
	return fmt.Sprintf("debate aborted at round %d (transcript: %s)", completedRounds, path), nil
}

func (d *DebateOrchestrator) flush(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func (d *DebateOrchestrator) cancelled(platform, userID string) bool {
	if d.Cancel == nil || platform == "" {
		return false
	}
	return d.Cancel.Peek(platform, userID) != cancel.None
}

func (d *DebateOrchestrator) assertStatus(ctx context.Context, surface models.ChatSurface, message string) {
	if d.Sink == nil || !surface.Bound() {
		return
	}
	_ = d.Sink.StatusUpdate(ctx, surface, message)
}

func buildSidePrompt(topic, perspective, priorDiscussion, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Debate topic: %s\nYour assigned perspective: %s\n", topic, perspective)
	if priorDiscussion != "" {
		fmt.Fprintf(&b, "\nPrior discussion:\n%s\n", priorDiscussion)
	}
	b.WriteString("\nMake your strongest argument for this round. Be concrete and address the other side's points if present.")
	return b.String()
}

func pickDebateModels(debateModels []string) (string, string) {
	switch len(debateModels) {
	case 0:
		return "", ""
	case 1:
		return debateModels[0], debateModels[0]
	default:
		return debateModels[0], debateModels[1]
	}
}

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/nexus-assistant/internal/config"
)

// buildSystemPrompt assembles the layered system prompt (§4.8): role rules,
// agent persona files, runtime/OS detection, tool rules, a docs pointer,
// preferences, and a memory excerpt. The result is deterministic given cfg,
// the agent directory's contents, now, and memoryExcerpt.
func buildSystemPrompt(cfg *config.Config, now time.Time, memoryExcerpt []string) string {
	var sections []string

	sections = append(sections, "You are a personal AI assistant with access to tools for shell "+
		"execution, file operations, web search, and scheduling. Be concise and direct; ask a "+
		"clarifying question when a request is ambiguous rather than guessing.")

	if persona := loadPersonaSections(cfg.AgentDir); persona != "" {
		sections = append(sections, persona)
	}

	sections = append(sections, fmt.Sprintf("Runtime: %s/%s. Today's date is %s.",
		runtime.GOOS, runtime.GOARCH, now.Format("2006-01-02")))

	sections = append(sections, "Tool rules: never fabricate a tool result; if a tool errors, "+
		"report the error rather than inventing an answer. Use status_update for progress "+
		"reports on long-running turns instead of leaving the user without feedback.")

	if cfg.Workspace != "" {
		sections = append(sections, fmt.Sprintf("Workspace files live under %s; documentation and "+
			"notes the user has left for you may be found there.", cfg.Workspace))
	}

	if prefs := loadPreferences(cfg.Workspace); prefs != "" {
		sections = append(sections, fmt.Sprintf("User preferences:\n%s", prefs))
	}

	if len(memoryExcerpt) > 0 {
		sections = append(sections, fmt.Sprintf("Recent memory:\n%s", strings.Join(memoryExcerpt, "\n")))
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// loadPersonaSections concatenates every *.md file directly under dir, in
// name order, as the agent-persona layer of the prompt.
func loadPersonaSections(dir string) string {
	if dir == "" {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(data))
		if content != "" {
			out = append(out, content)
		}
	}
	return strings.Join(out, "\n\n")
}

// loadPreferences reads an optional preferences.md from the workspace root.
func loadPreferences(workspace string) string {
	if workspace == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(workspace, "preferences.md"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

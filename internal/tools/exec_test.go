package tools

import (
	"context"
	"strings"
	"testing"
)

func TestExecToolRunsCommand(t *testing.T) {
	tool := NewExecTool("", "")
	out, err := tool.Run(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "returncode: 0") {
		t.Fatalf("expected returncode 0, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected stdout to contain hello, got %q", out)
	}
}

func TestExecToolRequiresCommand(t *testing.T) {
	tool := NewExecTool("", "")
	out, err := tool.Run(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "command is required") {
		t.Fatalf("expected validation message, got %q", out)
	}
}

func TestExecToolCapturesNonZeroExit(t *testing.T) {
	tool := NewExecTool("", "")
	out, err := tool.Run(context.Background(), map[string]any{"command": "exit 7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "returncode: 7") {
		t.Fatalf("expected returncode 7, got %q", out)
	}
}

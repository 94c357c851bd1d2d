package config

import (
	"strings"
	"testing"
)

func TestExpandAugment(t *testing.T) {
	got := ExpandAugment("task: {{.Prompt}} notes: {{.NotesFile}} done: {{.CompletionSignal}}", AugmentVars{
		Prompt:           "add tests",
		NotesFile:        "NOTES.md",
		CompletionSignal: "DONE_NOW",
	})

	want := "task: add tests notes: NOTES.md done: DONE_NOW"
	if got != want {
		t.Errorf("ExpandAugment() = %q, want %q", got, want)
	}
}

func TestExpandAugment_NoDoubleExpansion(t *testing.T) {
	// A prompt containing a placeholder must not be expanded again.
	got := ExpandAugment("{{.Prompt}}", AugmentVars{
		Prompt:           "evil {{.CompletionSignal}}",
		CompletionSignal: "DONE",
	})

	want := "evil {{.CompletionSignal}}"
	if got != want {
		t.Errorf("ExpandAugment() = %q, want %q", got, want)
	}
}

func TestAgentPrompt(t *testing.T) {
	cfg := Default()
	cfg.Prompt = "refactor the parser"

	got := cfg.AgentPrompt()

	if !strings.Contains(got, "refactor the parser") {
		t.Error("AgentPrompt() does not contain the task prompt")
	}
	if !strings.Contains(got, cfg.NotesFile) {
		t.Error("AgentPrompt() does not mention the notes file")
	}
	if !strings.Contains(got, cfg.CompletionSignal) {
		t.Error("AgentPrompt() does not mention the completion signal")
	}
	if strings.Contains(got, "{{.") {
		t.Errorf("AgentPrompt() left unexpanded placeholders: %q", got)
	}
}

func TestAgentPrompt_EmptyTemplateFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Prompt = "do things"
	cfg.AugmentTemplate = ""

	if got := cfg.AgentPrompt(); !strings.Contains(got, "do things") {
		t.Errorf("AgentPrompt() with empty template = %q, want it to contain the prompt", got)
	}
}

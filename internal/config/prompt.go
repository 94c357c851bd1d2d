package config

import "strings"

// DefaultAugmentTemplate wraps the operator's task prompt for the main agent
// invocation. It tells the agent that partial progress is fine, where to
// leave notes for the next iteration, and which exact phrase signals that
// the whole task is done.
const DefaultAugmentTemplate = `{{.Prompt}}

Guidelines for this session:
- You do not need to finish everything now. Small, complete steps beat large unfinished ones.
- Keep {{.NotesFile}} up to date: record context, progress so far, and next steps for the following session.
- Only when the ENTIRE task above is finished, print this exact phrase on its own line: {{.CompletionSignal}}
- Do not print that phrase for partial progress.`

// AugmentVars holds variables for augment template expansion.
type AugmentVars struct {
	Prompt           string
	NotesFile        string
	CompletionSignal string
}

// ExpandAugment performs variable substitution on the augment template.
// Uses single-pass replacement so a prompt containing a placeholder string
// cannot trigger a second expansion.
// Supported variables: {{.Prompt}}, {{.NotesFile}}, {{.CompletionSignal}}
func ExpandAugment(template string, vars AugmentVars) string {
	r := strings.NewReplacer(
		"{{.Prompt}}", vars.Prompt,
		"{{.NotesFile}}", vars.NotesFile,
		"{{.CompletionSignal}}", vars.CompletionSignal,
	)
	return r.Replace(template)
}

// AgentPrompt builds the augmented prompt for a main invocation from this
// configuration. The review pass never goes through here: it sends
// ReviewPrompt verbatim.
func (c *Config) AgentPrompt() string {
	template := c.AugmentTemplate
	if template == "" {
		template = DefaultAugmentTemplate
	}
	return ExpandAugment(template, AugmentVars{
		Prompt:           c.Prompt,
		NotesFile:        c.NotesFile,
		CompletionSignal: c.CompletionSignal,
	})
}

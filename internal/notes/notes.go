// Package notes bootstraps the shared notes file the agent keeps its durable
// context in between iterations.
package notes

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/afero"

	"github.com/dmelton/crank/internal/statefile"
)

//go:embed templates/notes.md
var skeletonRaw string

// templateVars feeds the notes skeleton template.
type templateVars struct {
	Prompt string
	Date   string
}

// Bootstrap creates the notes file from the skeleton when it is absent. An
// existing file is never touched, whatever its content. Returns true when the
// file was created.
func Bootstrap(fs afero.Fs, path, prompt string) (bool, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, fmt.Errorf("check notes file %s: %w", path, err)
	}
	if exists {
		return false, nil
	}

	content, err := render(templateVars{
		Prompt: prompt,
		Date:   time.Now().UTC().Format("2006-01-02"),
	})
	if err != nil {
		return false, err
	}

	if err := statefile.WriteAtomic(fs, path, []byte(content)); err != nil {
		return false, fmt.Errorf("write notes file: %w", err)
	}
	return true, nil
}

// render expands the skeleton template.
func render(vars templateVars) (string, error) {
	tmpl, err := template.New("notes").Parse(skeletonRaw)
	if err != nil {
		return "", fmt.Errorf("parse notes template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render notes template: %w", err)
	}
	return sb.String(), nil
}

// Package tui renders the liveness spinner shown on stderr while a
// blocking agent invocation runs.
package tui

import (
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var labelStyle = lipgloss.NewStyle().Faint(true)

// Spinner animates a label on a terminal while a blocking call runs. On a
// non-terminal it renders nothing, so piped output stays clean.
type Spinner struct {
	out     *os.File
	enabled bool
}

// NewSpinner creates a Spinner writing to out, typically os.Stderr.
func NewSpinner(out *os.File) *Spinner {
	return &Spinner{
		out:     out,
		enabled: term.IsTerminal(int(out.Fd())),
	}
}

// Start begins the animation and returns a function that stops it and
// erases the line. The returned function blocks until the render loop has
// shut down, so the caller's next output never races the last frame.
func (s *Spinner) Start(label string) (stop func()) {
	if !s.enabled {
		return func() {}
	}

	p := tea.NewProgram(newSpinnerModel(label),
		tea.WithOutput(s.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()

	return func() {
		p.Send(stopMsg{})
		<-done
	}
}

// stopMsg asks the spinner program to clear its line and exit.
type stopMsg struct{}

type spinnerModel struct {
	spinner  spinner.Model
	label    string
	quitting bool
}

func newSpinnerModel(label string) spinnerModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return spinnerModel{spinner: sp, label: label}
}

// Init starts the tick loop.
func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles tick and stop messages.
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stopMsg:
		m.quitting = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner and label. The final frame is empty so the
// line disappears once the call completes.
func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.spinner.View() + " " + labelStyle.Render(m.label)
}

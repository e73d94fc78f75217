package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ─── Key bindings ────────────────────────────────────────────────────────────

type confirmKeys struct {
	Yes key.Binding
	No  key.Binding
}

var defaultConfirmKeys = confirmKeys{
	Yes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "proceed")),
	No:  key.NewBinding(key.WithKeys("n", "N", "q", "esc", "ctrl+c"), key.WithHelp("n/esc", "abort")),
}

// ─── Model ───────────────────────────────────────────────────────────────────

// ConfirmModel asks a single yes/no question before destructive work.
type ConfirmModel struct {
	Title    string
	Details  []string
	keys     confirmKeys
	answered bool
	accepted bool
}

// NewConfirmModel builds a prompt with the given title and detail lines.
func NewConfirmModel(title string, details []string) ConfirmModel {
	return ConfirmModel{Title: title, Details: details, keys: defaultConfirmKeys}
}

// Accepted reports whether the user answered yes.
func (m ConfirmModel) Accepted() bool {
	return m.accepted
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, m.keys.Yes):
			m.answered, m.accepted = true, true
			return m, tea.Quit
		case key.Matches(k, m.keys.No):
			m.answered, m.accepted = true, false
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	if m.answered {
		return ""
	}
	var s strings.Builder
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(ColorDanger).Render(m.Title))
	s.WriteString("\n")
	for _, d := range m.Details {
		s.WriteString(lipgloss.NewStyle().Foreground(ColorMuted).Render("  " + IconBullet + " " + d))
		s.WriteString("\n")
	}
	help := fmt.Sprintf("%s %s · %s %s",
		m.keys.Yes.Help().Key, m.keys.Yes.Help().Desc,
		m.keys.No.Help().Key, m.keys.No.Help().Desc)
	s.WriteString(lipgloss.NewStyle().Foreground(ColorMuted).Italic(true).Render("  " + help))
	s.WriteString("\n")
	return s.String()
}

// Confirm runs the prompt on in/out and returns the answer.
func Confirm(in io.Reader, out io.Writer, title string, details []string) (bool, error) {
	p := tea.NewProgram(NewConfirmModel(title, details), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	m, ok := final.(ConfirmModel)
	return ok && m.accepted, nil
}

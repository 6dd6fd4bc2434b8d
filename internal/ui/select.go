package ui

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(0).Foreground(lipgloss.Color("170"))
	quitTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// SelectProfile shows a picker over the given options and returns the chosen
// item. ErrCancelled when the user backs out.
func SelectProfile(title string, options []string) (string, error) {
	m := selectModel{
		title:   title,
		options: options,
	}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	fm, ok := finalModel.(selectModel)
	if !ok || !fm.chosen {
		return "", ErrCancelled
	}
	return fm.options[fm.cursor], nil
}

type selectModel struct {
	title    string
	options  []string
	cursor   int
	chosen   bool
	quitting bool
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.chosen || m.quitting {
		return ""
	}

	s := "\n" + titleStyle.Render(m.title) + "\n\n"
	for i, opt := range m.options {
		if i == m.cursor {
			s += selectedStyle.Render("> "+opt) + "\n"
		} else {
			s += itemStyle.Render(opt) + "\n"
		}
	}
	s += quitTextStyle.Render("\n↑/↓ move · enter select · q cancel") + "\n"
	return s
}

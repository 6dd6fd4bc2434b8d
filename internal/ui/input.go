package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("cancelled")

// GetInput asks for a single line. Password mode masks the echo.
func GetInput(prompt string, placeholder string, password bool) (string, error) {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 156
	ti.Width = 40

	if password {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}

	m := inputModel{
		textInput: ti,
		prompt:    prompt,
	}

	// Use stderr to avoid polluting stdout
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	if fm, ok := finalModel.(inputModel); ok && fm.complete {
		return fm.textInput.Value(), nil
	}
	return "", ErrCancelled
}

type inputModel struct {
	textInput textinput.Model
	prompt    string
	complete  bool
	quitting  bool
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.complete = true
			return m, tea.Quit
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.complete {
		return ""
	}
	if m.quitting {
		return quitTextStyle.Render("Cancelled.")
	}
	return fmt.Sprintf(
		"\n%s\n\n%s\n\n",
		titleStyle.Render(m.prompt),
		m.textInput.View(),
	)
}

// ReadCode reads a short secret from the terminal in raw mode with masked
// echo. Used for MFA codes where the full TUI is overkill.
func ReadCode(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		// Piped stdin: read a plain line.
		var code string
		if _, err := fmt.Fscanln(os.Stdin, &code); err != nil {
			return "", err
		}
		return strings.TrimSpace(code), nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return "", fmt.Errorf("failed to set terminal mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	var code string
	buf := make([]byte, 1)
	for {
		if _, err := syscall.Read(fd, buf); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		switch c := buf[0]; {
		case c == 3: // Ctrl+C
			fmt.Fprint(os.Stderr, "\r\n")
			return "", ErrCancelled
		case c == 13 || c == 10: // Enter
			fmt.Fprint(os.Stderr, "\r\n")
			return strings.TrimSpace(code), nil
		case c == 127 || c == 8: // Backspace
			if len(code) > 0 {
				code = code[:len(code)-1]
				fmt.Fprint(os.Stderr, "\b \b")
			}
		case c >= 32 && c <= 126:
			code += string(c)
			fmt.Fprint(os.Stderr, "*")
		}
	}
}

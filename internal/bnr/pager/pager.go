// Package pager shows the dry-run preview to the operator before the
// confirmation prompt.
package pager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Pager displays a file and returns once the operator is done reading.
type Pager interface {
	Show(ctx context.Context, path string) error
}

// New returns a Terminal pager when both stdin and out are terminals and a
// Plain one otherwise.
func New(out *os.File) Pager {
	if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(out.Fd()) {
		return &Terminal{In: os.Stdin, Out: out}
	}
	return &Plain{Out: out}
}

// Plain copies the file to Out.
type Plain struct {
	Out io.Writer
}

func (p *Plain) Show(_ context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open preview: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(p.Out, f)
	return err
}

// Terminal pages the file in a full-screen scrollable view.
type Terminal struct {
	In    io.Reader
	Out   io.Writer
	Title string
}

func (t *Terminal) Show(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read preview: %w", err)
	}

	title := t.Title
	if title == "" {
		title = "Preview"
	}

	p := tea.NewProgram(
		newModel(title, string(data)),
		tea.WithContext(ctx),
		tea.WithInput(t.In),
		tea.WithOutput(t.Out),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("pager: %w", err)
	}
	return nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Padding(0, 1)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

const helpText = "↑/↓ pgup/pgdn scroll • q/enter done"

type model struct {
	title    string
	content  string
	viewport viewport.Model
	ready    bool
}

func newModel(title, content string) model {
	return model{title: title, content: strings.TrimRight(content, "\n")}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "enter", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		chrome := lipgloss.Height(m.header()) + lipgloss.Height(m.footer())
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chrome
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "\n  loading preview..."
	}
	return m.header() + "\n" + m.viewport.View() + "\n" + m.footer()
}

func (m model) header() string {
	title := titleStyle.Render(m.title)
	rule := lineStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title))))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, rule)
}

func (m model) footer() string {
	info := infoStyle.Render(fmt.Sprintf("%s  %3.f%%", helpText, m.viewport.ScrollPercent()*100))
	rule := lineStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(info))))
	return lipgloss.JoinHorizontal(lipgloss.Center, rule, info)
}

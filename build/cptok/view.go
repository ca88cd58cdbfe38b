package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"moria.us/cptok/build/tokfile"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8ab4f8"))
	badRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
)

type viewLine struct {
	text  string
	title bool
	bad   bool
}

// A viewer is a pager over the tokens of a set.
type viewer struct {
	name     string
	lines    []viewLine
	nbad     int
	cursor   int
	top      int
	height   int
	quitting bool
}

func (a *app) newViewer(name string, set *tokfile.Set) (*viewer, error) {
	v := viewer{name: name, height: 20}
	for i, seq := range set.Sequences {
		t, err := a.newTable(seq)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		v.lines = append(v.lines, viewLine{
			text:  fmt.Sprintf("sequence %d (%s), %d tokens", i, programName(set, i), len(seq)),
			title: true,
		})
		widths := make([]int, len(t.headers))
		for _, row := range append([][]string{t.headers}, t.rows...) {
			for j, s := range row {
				widths[j] = max(widths[j], len(s))
			}
		}
		v.lines = append(v.lines, viewLine{text: pad(t.headers, widths), title: true})
		for j, row := range t.rows {
			v.lines = append(v.lines, viewLine{text: pad(row, widths), bad: t.bad[j]})
			if t.bad[j] {
				v.nbad++
			}
		}
	}
	return &v, nil
}

func pad(row []string, widths []int) string {
	var b strings.Builder
	for i, s := range row {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(s)
		b.WriteString(strings.Repeat(" ", widths[i]-len(s)))
	}
	return strings.TrimRight(b.String(), " ")
}

func (m *viewer) Init() tea.Cmd {
	return nil
}

// move sets the cursor and scrolls it into view.
func (m *viewer) move(pos int) {
	pos = min(pos, len(m.lines)-1)
	pos = max(pos, 0)
	m.cursor = pos
	if m.cursor < m.top {
		m.top = m.cursor
	} else if m.cursor >= m.top+m.height {
		m.top = m.cursor - m.height + 1
	}
}

// findBad moves the cursor to the next rejected token in the direction dir.
func (m *viewer) findBad(dir int) {
	for i := m.cursor + dir; i >= 0 && i < len(m.lines); i += dir {
		if m.lines[i].bad {
			m.move(i)
			return
		}
	}
}

func (m *viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-2, 1)
		m.move(m.cursor)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "j", "down":
			m.move(m.cursor + 1)
		case "k", "up":
			m.move(m.cursor - 1)
		case "f", "pgdown", " ":
			m.move(m.cursor + m.height)
		case "b", "pgup":
			m.move(m.cursor - m.height)
		case "g", "home":
			m.move(0)
		case "G", "end":
			m.move(len(m.lines) - 1)
		case "n":
			m.findBad(1)
		case "N":
			m.findBad(-1)
		}
	}
	return m, nil
}

func (m *viewer) View() string {
	if m.quitting {
		return ""
	}
	var out strings.Builder
	end := min(m.top+m.height, len(m.lines))
	for i := m.top; i < end; i++ {
		ln := m.lines[i]
		style := lipgloss.NewStyle()
		switch {
		case ln.title:
			style = titleStyle
		case ln.bad:
			style = badRowStyle
		}
		if i == m.cursor {
			style = style.Inherit(cursorStyle)
		}
		out.WriteString(style.Render(ln.text))
		out.WriteByte('\n')
	}
	for i := end - m.top; i < m.height; i++ {
		out.WriteByte('\n')
	}
	status := fmt.Sprintf("%s  line %d/%d  %d rejected  j/k:move  f/b:page  n/N:next/prev rejected  q:quit",
		m.name, m.cursor+1, len(m.lines), m.nbad)
	out.WriteString(dimStyle.Render(status))
	return out.String()
}

func (a *app) viewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view <tokens|score>",
		Short: "Page through tokens, highlighting tokens which break the grammar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.readSet(args[0])
			if err != nil {
				return err
			}
			v, err := a.newViewer(args[0], set)
			if err != nil {
				return err
			}
			p := tea.NewProgram(v,
				tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()))
			_, err = p.Run()
			return err
		},
	}
}

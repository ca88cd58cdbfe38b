package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"moria.us/cptok/build/token"
	"moria.us/cptok/build/tokfile"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8ab4f8"))
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	absentStyle   = cellStyle.Foreground(lipgloss.Color("#555"))
	rejectedStyle = cellStyle.Foreground(lipgloss.Color("#ff5f5f"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#444"))
)

const absentCell = "."

// A tokenTable is the text of a token sequence, one row per token.
type tokenTable struct {
	headers []string
	rows    [][]string
	absent  [][]bool
	bad     []bool
}

func (a *app) newTable(seq []token.Compound) (*tokenTable, error) {
	bad, err := a.tok.Rejected(seq)
	if err != nil {
		return nil, err
	}
	l := a.tok.Layout()
	t := tokenTable{
		headers: []string{"#"},
		bad:     bad,
	}
	for i := 0; i < l.Width(); i++ {
		t.headers = append(t.headers, l.SlotKind(i).String())
	}
	for i, c := range seq {
		row := []string{strconv.Itoa(i)}
		absent := []bool{false}
		for j, f := range c {
			switch {
			case f.IsAbsent():
				row = append(row, absentCell)
			case f.Kind() != l.SlotKind(j):
				row = append(row, f.Label())
			default:
				row = append(row, f.Value())
			}
			absent = append(absent, f.IsAbsent())
		}
		if bad[i] {
			row[0] += "!"
		}
		t.rows = append(t.rows, row)
		t.absent = append(t.absent, absent)
	}
	return &t, nil
}

func (t *tokenTable) writePlain(w io.Writer) error {
	if _, err := fmt.Fprintln(w, strings.Join(t.headers, "\t")); err != nil {
		return err
	}
	for _, row := range t.rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func (t *tokenTable) render() string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case row < 0 || row >= len(t.rows):
				return cellStyle
			case t.bad[row]:
				return rejectedStyle
			case t.absent[row][col]:
				return absentStyle
			}
			return cellStyle
		}).
		String()
}

// useStyle returns true if output to w should be styled.
func useStyle(w io.Writer, color string) (bool, error) {
	switch color {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		f, ok := w.(*os.File)
		return ok && isTerminal(f.Fd()), nil
	}
	return false, fmt.Errorf("invalid color mode: %q", color)
}

func (a *app) dump(w io.Writer, set *tokfile.Set, styled bool) error {
	for i, seq := range set.Sequences {
		t, err := a.newTable(seq)
		if err != nil {
			return fmt.Errorf("sequence %d: %w", i, err)
		}
		title := fmt.Sprintf("sequence %d (%s), %d tokens", i, programName(set, i), len(seq))
		if styled {
			fmt.Fprintln(w, headerStyle.Render(title))
			fmt.Fprintln(w, t.render())
			continue
		}
		fmt.Fprintln(w, "# "+title)
		if err := t.writePlain(w); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) dumpCommand() *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "dump <tokens|score>",
		Short: "Print tokens as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			styled, err := useStyle(out, color)
			if err != nil {
				return err
			}
			set, err := a.readSet(args[0])
			if err != nil {
				return err
			}
			return a.dump(out, set, styled)
		},
	}
	cmd.Flags().StringVar(&color, "color", "auto", "style the table: auto, always, or never")
	return cmd
}

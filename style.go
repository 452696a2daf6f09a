package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	maxWidth     = 120
)

var (
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

func paragraph(text string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render(text)
}

func keyword(text string) string {
	return keywordStyle.Render(text)
}

// outputWidth returns the terminal width capped at maxWidth, or
// defaultWidth when stdout is not a terminal.
func outputWidth() int {
	fd := int(os.Stdout.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	if w > maxWidth {
		w = maxWidth
	}
	return w
}

// padRight pads s with spaces to width display cells. Wide CJK runes
// count as two cells.
func padRight(s string, width int) string {
	if gap := width - runewidth.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// columnWidth returns the widest display width among values.
func columnWidth(values []string) int {
	w := 0
	for _, v := range values {
		if n := runewidth.StringWidth(v); n > w {
			w = n
		}
	}
	return w
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Width(12)
)

// row renders an aligned "label  value" line.
func row(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

func renderSummary(s runSummary) string {
	lines := []string{
		titleStyle.Render("Batch finished"),
		row("Total", s.Total),
		row("Completed", okStyle.Render(fmt.Sprint(s.Completed))),
		row("Skipped", s.Skipped),
		row("Failed", failedValue(s.Failed)),
		row("Cancelled", s.Cancelled),
		row("Elapsed", s.Elapsed.Round(time.Millisecond)),
	}
	for _, f := range s.Failures {
		lines = append(lines, errorStyle.Render("x ")+f.Input+mutedStyle.Render(": "+f.Error))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func failedValue(n int) string {
	if n == 0 {
		return "0"
	}
	return errorStyle.Render(fmt.Sprint(n))
}

// truncate shortens s to width display cells.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if width > len(r) {
		width = len(r)
	}
	if width <= 1 {
		return string(r[:width])
	}
	return "…" + strings.TrimSpace(string(r[len(r)-width+1:]))
}

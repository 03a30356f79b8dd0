package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/imark/internal/scheme"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	progressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	promptStyle    = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	choiceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	pointsStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	deductionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	detailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).MarginTop(1)
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// View renders the current criterion.
func (m *Model) View() string {
	if m.done {
		return ""
	}
	header := "⬡ IMARK"
	if t := strings.TrimSpace(m.title); t != "" {
		header = fmt.Sprintf("%s · %s", header, t)
	}
	sections := []string{headerStyle.Render(header)}

	body := "Loading criterion..."
	if m.presented {
		body = m.renderCriterion()
	}
	width := m.width - 2
	if width < 40 {
		width = 40
	}
	sections = append(sections, boxStyle.Width(width).Render(body))

	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.status))
	}
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderCriterion() string {
	p := m.prompt
	crit := p.Criterion
	progress := progressStyle.Render(fmt.Sprintf(
		"Criterion %d/%d · Total %s / %s",
		p.Index+1, p.Count, p.Total, m.session.Scheme().MaxTotal(),
	))
	lines := []string{progress, "", promptStyle.Render(crit.Prompt)}

	labelWidth := 0
	for _, ch := range crit.Choices {
		if w := lipgloss.Width(ch.Label); w > labelWidth {
			labelWidth = w
		}
	}
	for i, ch := range crit.Choices {
		lines = append(lines, m.renderChoice(i, ch, labelWidth))
		if ch.Description != "" {
			lines = append(lines, detailStyle.Render("      "+ch.Description))
		}
	}
	switch {
	case p.Pane != "":
		lines = append(lines, "", detailStyle.Render(fmt.Sprintf("Context shown in pane %s", p.Pane)))
	case crit.Context != "" && p.PaneErr != nil:
		lines = append(lines, "", detailStyle.Render("Context: "+crit.Context))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderChoice(i int, ch scheme.Choice, labelWidth int) string {
	cursor := "  "
	style := choiceStyle
	if i == m.highlight {
		cursor = "› "
		style = selectedStyle
	}
	number := "  "
	if i < 9 {
		number = fmt.Sprintf("%d.", i+1)
	}
	pts := pointsStyle
	if ch.Points < 0 {
		pts = deductionStyle
	}
	label := ch.Label + strings.Repeat(" ", labelWidth-lipgloss.Width(ch.Label))
	return fmt.Sprintf("%s%s %s  %s", cursor, number, style.Render(label), pts.Render(fmt.Sprintf("%s pt", ch.Points)))
}

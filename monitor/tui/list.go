package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ksugimoto/hislipd/highlight"
)

func eventStatus(ev wireEvent) string {
	if ev.Chatter {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render("CHAT")
	}
	if ev.Kind == "session-closed" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("END")
	}
	return ""
}

const (
	colMarker   = 2
	colKind     = 16
	colSession  = 8
	colTime     = 12
	colStatus   = 5
)

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	colDetail := max(innerWidth-colMarker-colKind-colSession-colTime-colStatus-4, 10)

	var title string
	if m.searchQuery != "" || m.filterQuery != "" {
		title = fmt.Sprintf(" hislip-monitor (%d/%d events) ", len(m.filtered), len(m.events))
	} else {
		title = fmt.Sprintf(" hislip-monitor (%d events) ", len(m.events))
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	dataRows := max(maxRows-1, 1)

	start := 0
	if len(m.filtered) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(m.filtered) {
			start = len(m.filtered) - dataRows
		}
	}
	end := min(start+dataRows, len(m.filtered))

	header := fmt.Sprintf("  %-*s %-*s %*s %-*s",
		colKind, "Kind",
		colDetail, "Detail",
		colSession, "Session",
		colTime, "Time",
	)

	rows := []string{lipgloss.NewStyle().Bold(true).Render(header)}
	for i := start; i < end; i++ {
		ev := m.events[m.filtered[i]]
		isCursor := i == m.cursor

		marker := "  "
		if isCursor {
			marker = "▶ "
		}

		detail := ev.Normalized
		if detail == "" {
			detail = ev.Detail
		}
		detail = truncate(detail, colDetail)
		if detail == "" {
			detail = "-"
		}

		row := fmt.Sprintf("%s%-*s %-*s %*d %*s %s",
			marker,
			colKind, ev.Kind,
			colDetail, detail,
			colSession, ev.SessionID,
			colTime, formatTime(ev.at()),
			eventStatus(ev),
		)
		if isCursor {
			row = lipgloss.NewStyle().Bold(true).Render(row)
		}
		rows = append(rows, row)
	}

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	box := border.Render(strings.Join(rows, "\n"))

	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m Model) renderPreview() string {
	innerWidth := max(m.width-4, 20)
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return ""
	}
	ev := m.events[m.filtered[m.cursor]]

	var lines []string
	lines = append(lines, "Kind:    "+ev.Kind)
	lines = append(lines, fmt.Sprintf("Session: %d", ev.SessionID))
	if ev.Normalized != "" {
		lines = append(lines, "Payload: "+highlight.Payload(truncate(ev.Normalized, max(innerWidth-10, 20))))
	} else if ev.Detail != "" {
		lines = append(lines, "Detail:  "+truncate(ev.Detail, max(innerWidth-10, 20)))
	}
	if ev.Chatter {
		lines = append(lines, "Chatter: yes")
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(lipgloss.Color("240"))

	return border.Render(strings.Join(lines, "\n"))
}

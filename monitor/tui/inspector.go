package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ksugimoto/hislipd/clipboard"
	"github.com/ksugimoto/hislipd/highlight"
)

func (m Model) updateInspect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.view = viewList
		return m, nil
	case "c":
		ev := m.cursorEvent()
		if ev == nil {
			return m, nil
		}
		text := ev.Normalized
		if text == "" {
			text = ev.Detail
		}
		_ = clipboard.Copy(context.Background(), text)
		return m, nil
	case "j", "down":
		maxScroll := max(len(m.inspectLines())-m.inspectVisibleRows(), 0)
		if m.inspectScroll < maxScroll {
			m.inspectScroll++
		}
		return m, nil
	case "k", "up":
		if m.inspectScroll > 0 {
			m.inspectScroll--
		}
		return m, nil
	}
	return m, nil
}

func (m Model) inspectVisibleRows() int {
	return max(m.height-2, 3)
}

func (m Model) inspectLines() []string {
	ev := m.cursorEvent()
	if ev == nil {
		return nil
	}

	var lines []string
	lines = append(lines, "Kind:     "+ev.Kind)
	lines = append(lines, fmt.Sprintf("Session:  %d", ev.SessionID))
	if ev.SubAddress != "" {
		lines = append(lines, "Sub-addr: "+ev.SubAddress)
	}
	lines = append(lines, "Time:     "+formatTimeFull(ev.at()))

	if ev.Normalized != "" {
		lines = append(lines, "", "Payload:")
		for l := range strings.SplitSeq(ev.Normalized, "\n") {
			lines = append(lines, "  "+highlight.Payload(strings.TrimSpace(l)))
		}
	}
	if ev.Detail != "" && ev.Detail != ev.Normalized {
		lines = append(lines, "", "Detail:   "+ev.Detail)
	}
	if ev.Chatter {
		lines = append(lines, "", "Chatter:  repeated poll pattern detected")
	}

	return lines
}

func (m Model) renderInspector() string {
	innerWidth := max(m.width-4, 20)
	visibleRows := m.inspectVisibleRows()

	lines := m.inspectLines()
	if lines == nil {
		return ""
	}

	maxScroll := max(len(lines)-visibleRows, 0)
	if m.inspectScroll > maxScroll {
		m.inspectScroll = maxScroll
	}

	end := min(m.inspectScroll+visibleRows, len(lines))
	content := strings.Join(lines[m.inspectScroll:end], "\n")

	borderColor := lipgloss.Color("240")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(borderColor).
		Render(content)

	boxLines := strings.Split(box, "\n")
	if len(boxLines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		title := " Inspector "
		dashes := max(innerWidth-len([]rune(title)), 0)
		boxLines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
	}
	if n := len(boxLines); n > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		help := " q: back  j/k: scroll  c: copy payload "
		dashes := max(innerWidth-len([]rune(help)), 0)
		boxLines[n-1] = borderFg.Render("╰") +
			lipgloss.NewStyle().Faint(true).Render(help) +
			borderFg.Render(strings.Repeat("─", dashes)+"╯")
	}

	return strings.Join(boxLines, "\n")
}

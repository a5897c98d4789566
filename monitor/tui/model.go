// Package tui implements the hislip-monitor terminal dashboard: a Bubble
// Tea client that consumes the monitoring server's /api/events SSE stream
// and shows a live, filterable, inspectable feed of session events.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ksugimoto/hislipd/clipboard"
)

type viewMode int

const (
	viewList viewMode = iota
	viewInspect
)

// Model is the Bubble Tea model for the hislip-monitor TUI.
type Model struct {
	target string
	client *sseClient

	events   []wireEvent
	filtered []int // indices into events passing the active filter/search
	cursor   int
	follow   bool
	width    int
	height   int
	err      error
	view     viewMode

	searchMode   bool
	searchQuery  string
	searchCursor int
	filterMode   bool
	filterQuery  string
	filterCursor int

	inspectScroll int
}

type eventMsg struct{ Event wireEvent }
type errMsg struct{ Err error }
type connectedMsg struct{ client *sseClient }

// New creates a Model targeting the given monitor/web server address
// (e.g. "http://localhost:8380").
func New(target string) Model {
	return Model{target: target, follow: true}
}

// Init starts the SSE connection.
func (m Model) Init() tea.Cmd {
	return connect(m.target)
}

func connect(target string) tea.Cmd {
	return func() tea.Msg {
		c := newSSEClient(target)
		go c.run()
		return connectedMsg{client: c}
	}
}

func recvEvent(c *sseClient) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-c.events:
			return eventMsg{Event: ev}
		case err := <-c.errs:
			return errMsg{Err: err}
		}
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectedMsg:
		m.client = msg.client
		return m, recvEvent(msg.client)

	case eventMsg:
		m.events = append(m.events, msg.Event)
		m.filtered = m.rebuildFiltered()
		if m.follow {
			m.cursor = max(len(m.filtered)-1, 0)
		}
		return m, recvEvent(m.client)

	case errMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewInspect:
			return m.updateInspect(msg)
		case viewList:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if m.err != nil {
		return friendlyError(m.err, m.width)
	}
	if len(m.events) == 0 {
		return "Waiting for events..."
	}

	if m.view == viewInspect {
		return m.renderInspector()
	}

	var footer string
	switch {
	case m.searchMode:
		footer = "  / " + renderInputWithCursor(m.searchQuery, m.searchCursor)
	case m.filterMode:
		footer = "  filter: " + renderInputWithCursor(m.filterQuery, m.filterCursor)
	default:
		items := []string{
			"q: quit", "j/k: navigate",
			"enter: inspect", "c: copy",
			"/: search", "f: filter",
		}
		footer = wrapFooterItems(items, m.width)
		if m.filterQuery != "" {
			footer += "\n  " + fmt.Sprintf("[filter: %s]", describeFilter(m.filterQuery))
		}
		if m.searchQuery != "" || m.filterQuery != "" {
			footer += "  esc: clear"
		}
	}

	footerLines := strings.Count(footer, "\n") + 1
	listHeight := m.listHeight(footerLines)

	return strings.Join([]string{
		m.renderList(listHeight),
		m.renderPreview(),
		footer,
	}, "\n")
}

func (m Model) listHeight(footerLines int) int {
	extra := max(footerLines-1, 0)
	return max(m.height-12-extra, 3)
}

func (m Model) rebuildFiltered() []int {
	var conds []filterCondition
	if m.filterQuery != "" {
		conds = parseFilter(m.filterQuery)
	}
	searchLower := strings.ToLower(m.searchQuery)

	var idx []int
	for i, ev := range m.events {
		if len(conds) > 0 && !matchAllConditions(ev, conds) {
			continue
		}
		if searchLower != "" &&
			!strings.Contains(strings.ToLower(ev.Detail), searchLower) &&
			!strings.Contains(strings.ToLower(ev.Normalized), searchLower) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

func (m Model) cursorEvent() *wireEvent {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	return &m.events[m.filtered[m.cursor]]
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode {
		return m.updateSearch(msg)
	}
	if m.filterMode {
		return m.updateFilter(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if len(m.filtered) > 0 {
			m.view = viewInspect
			m.inspectScroll = 0
		}
		return m, nil
	case "c":
		return m.copyPayload(), nil
	case "/":
		m.searchMode = true
		m.searchQuery = ""
		m.searchCursor = 0
		return m, nil
	case "f":
		m.filterMode = true
		m.filterQuery = ""
		m.filterCursor = 0
		return m, nil
	case "esc":
		return m.clearFilter(), nil
	case "j", "down":
		return m.navigateCursor(msg.String()), nil
	case "k", "up":
		return m.navigateCursor(msg.String()), nil
	case "ctrl+d", "pgdown":
		return m.pageScroll(msg.String()), nil
	case "ctrl+u", "pgup":
		return m.pageScroll(msg.String()), nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		return m, nil
	case "esc":
		m.searchMode = false
		m.searchQuery = ""
		m.filtered = m.rebuildFiltered()
		m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
		return m, nil
	case "backspace":
		if m.searchCursor > 0 {
			runes := []rune(m.searchQuery)
			m.searchQuery = string(runes[:m.searchCursor-1]) + string(runes[m.searchCursor:])
			m.searchCursor--
			m.filtered = m.rebuildFiltered()
			m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
		}
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "left":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil
	case "right":
		if m.searchCursor < len([]rune(m.searchQuery)) {
			m.searchCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}
	runes := []rune(m.searchQuery)
	m.searchQuery = string(runes[:m.searchCursor]) + string(r) + string(runes[m.searchCursor:])
	m.searchCursor += len(r)
	m.filtered = m.rebuildFiltered()
	m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterMode = false
		return m, nil
	case "esc":
		m.filterMode = false
		m.filterQuery = ""
		m.filtered = m.rebuildFiltered()
		m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
		return m, nil
	case "backspace":
		if m.filterCursor > 0 {
			runes := []rune(m.filterQuery)
			m.filterQuery = string(runes[:m.filterCursor-1]) + string(runes[m.filterCursor:])
			m.filterCursor--
			m.filtered = m.rebuildFiltered()
			m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
		}
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "left":
		if m.filterCursor > 0 {
			m.filterCursor--
		}
		return m, nil
	case "right":
		if m.filterCursor < len([]rune(m.filterQuery)) {
			m.filterCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}
	runes := []rune(m.filterQuery)
	m.filterQuery = string(runes[:m.filterCursor]) + string(r) + string(runes[m.filterCursor:])
	m.filterCursor += len(r)
	m.filtered = m.rebuildFiltered()
	m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
	return m, nil
}

func (m Model) pageScroll(key string) Model {
	half := max(m.listHeight(1)/2, 1)
	switch key {
	case "ctrl+d", "pgdown":
		m.cursor = min(m.cursor+half, max(len(m.filtered)-1, 0))
		if len(m.filtered) > 0 && m.cursor == len(m.filtered)-1 {
			m.follow = true
		}
	case "ctrl+u", "pgup":
		m.cursor = max(m.cursor-half, 0)
		m.follow = false
	}
	return m
}

func (m Model) navigateCursor(key string) Model {
	switch key {
	case "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
	case "down":
		if len(m.filtered) > 0 && m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		if len(m.filtered) > 0 && m.cursor == len(m.filtered)-1 {
			m.follow = true
		}
	}
	return m
}

func (m Model) copyPayload() Model {
	ev := m.cursorEvent()
	if ev == nil {
		return m
	}
	text := ev.Normalized
	if text == "" {
		text = ev.Detail
	}
	_ = clipboard.Copy(context.Background(), text)
	return m
}

func (m Model) clearFilter() Model {
	changed := false
	if m.searchQuery != "" {
		m.searchQuery = ""
		changed = true
	}
	if m.filterQuery != "" {
		m.filterQuery = ""
		changed = true
	}
	if changed {
		m.filtered = m.rebuildFiltered()
		m.cursor = min(m.cursor, max(len(m.filtered)-1, 0))
	}
	return m
}

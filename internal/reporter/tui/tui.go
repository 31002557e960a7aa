// Package tui renders a live-updating view of a run's progress by
// subscribing to the scheduler's event stream, as an alternative
// consumer alongside the plain-text and file-based reporters.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jpequegn/testforge/internal/event"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1F4E8C"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E"))
)

// eventMsg wraps one bus event for delivery through bubbletea's
// message loop.
type eventMsg event.Event

// doneMsg signals the subscription channel closed (the bus was closed
// because the run finished).
type doneMsg struct{}

// testRow tracks the latest known state of one test for display.
type testRow struct {
	key      string
	status   string
	attempts int
}

// Model is a bubbletea model that renders running/finished tests as
// events arrive on ch.
type Model struct {
	ch      <-chan event.Event
	rows    map[string]*testRow
	order   []string
	passed  int
	failed  int
	skipped int
	done    bool
}

// New creates a Model that reads from ch until it closes.
func New(ch <-chan event.Event) Model {
	return Model{ch: ch, rows: make(map[string]*testRow)}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.ch)
}

func waitForEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case eventMsg:
		m.apply(event.Event(msg))
		return m, waitForEvent(m.ch)
	}
	return m, nil
}

func (m *Model) apply(ev event.Event) {
	key := ev.BinaryID + "::" + ev.TestName
	switch ev.Kind {
	case event.KindAttemptStarted:
		row, ok := m.rows[key]
		if !ok {
			row = &testRow{key: key}
			m.rows[key] = row
			m.order = append(m.order, key)
		}
		row.status = "running"
		row.attempts = ev.Attempt
	case event.KindAttemptFinished:
		row, ok := m.rows[key]
		if !ok {
			row = &testRow{key: key}
			m.rows[key] = row
			m.order = append(m.order, key)
		}
		row.status = ev.Outcome
		switch ev.Outcome {
		case "pass":
			m.passed++
		case "fail", "timeout", "exec-fail", "leak":
			m.failed++
		}
	case event.KindTestSkipped:
		m.skipped++
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("testforge"))
	b.WriteString("\n\n")

	sorted := append([]string(nil), m.order...)
	sort.Strings(sorted)
	for _, key := range sorted {
		row := m.rows[key]
		b.WriteString(statusBadge(row.status))
		b.WriteString(" ")
		b.WriteString(row.key)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s  %s  %s\n",
		passStyle.Render(fmt.Sprintf("passed %d", m.passed)),
		failStyle.Render(fmt.Sprintf("failed %d", m.failed)),
		warnStyle.Render(fmt.Sprintf("skipped %d", m.skipped)),
	))
	if m.done {
		b.WriteString(dimStyle.Render("run finished\n"))
	} else {
		b.WriteString(dimStyle.Render("press q to quit early\n"))
	}
	return b.String()
}

func statusBadge(status string) string {
	switch status {
	case "pass":
		return passStyle.Render("PASS")
	case "running":
		return warnStyle.Render("RUN ")
	case "":
		return dimStyle.Render("WAIT")
	default:
		return failStyle.Render(strings.ToUpper(status))
	}
}

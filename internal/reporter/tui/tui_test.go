package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jpequegn/testforge/internal/event"
)

func TestModelTracksPassAndFailCounts(t *testing.T) {
	ch := make(chan event.Event, 8)
	ch <- event.Event{Kind: event.KindAttemptStarted, BinaryID: "bin", TestName: "alpha", Attempt: 1}
	ch <- event.Event{Kind: event.KindAttemptFinished, BinaryID: "bin", TestName: "alpha", Attempt: 1, Outcome: "pass"}
	ch <- event.Event{Kind: event.KindAttemptStarted, BinaryID: "bin", TestName: "beta", Attempt: 1}
	ch <- event.Event{Kind: event.KindAttemptFinished, BinaryID: "bin", TestName: "beta", Attempt: 1, Outcome: "fail"}
	close(ch)

	m := New(ch)
	var model tea.Model = m
	var cmd tea.Cmd = m.Init()
	for cmd != nil {
		msg := cmd()
		model, cmd = model.Update(msg)
	}

	got := model.(Model)
	if got.passed != 1 {
		t.Fatalf("passed = %d, want 1", got.passed)
	}
	if got.failed != 1 {
		t.Fatalf("failed = %d, want 1", got.failed)
	}
	if !got.done {
		t.Fatal("expected done to be true once the channel closes")
	}
}

func TestViewRendersEveryTrackedTest(t *testing.T) {
	ch := make(chan event.Event)
	close(ch)
	m := New(ch)
	m.apply(event.Event{Kind: event.KindAttemptStarted, BinaryID: "bin", TestName: "alpha", Attempt: 1})
	m.apply(event.Event{Kind: event.KindAttemptFinished, BinaryID: "bin", TestName: "alpha", Attempt: 1, Outcome: "pass"})

	view := m.View()
	if !strings.Contains(view, "bin::alpha") {
		t.Fatalf("view missing test row: %s", view)
	}
	if !strings.Contains(view, "passed 1") {
		t.Fatalf("view missing pass count: %s", view)
	}
}

func TestKeyPressCtrlCQuits(t *testing.T) {
	ch := make(chan event.Event)
	m := New(ch)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
}

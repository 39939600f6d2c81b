package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/james-see/notesampler/pkg/timeline"
)

func TestMenuNavigation(t *testing.T) {
	m := New(nil)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.menuIndex != 1 {
		t.Fatalf("menuIndex = %d, want 1", m.menuIndex)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if next.(Model).menuIndex != 1 {
		t.Error("menuIndex moved past the last item")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	next, cmd := next.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	if next.(Model).state != StateFilePicker || cmd == nil {
		t.Errorf("enter on first item: state = %d", next.(Model).state)
	}
}

func TestDecodeResult(t *testing.T) {
	data, err := timeline.Encode([]timeline.Event{
		{Time: 0, Kind: timeline.ProgramChange, Channel: 1, Program: 56},
		{Time: 0.25, Kind: timeline.NoteOn, Channel: 1, Note: 64, Velocity: 90},
	}, 480)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := timeline.Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	m := New(nil)
	m.state = StateDecoding
	next, _ := m.Update(decodeDoneMsg{summary: sess.Summary()})
	m = next.(Model)
	if m.state != StateTimeline {
		t.Fatalf("state = %d, want StateTimeline", m.state)
	}

	out := RenderTimeline(m.summary)
	for _, want := range []string{"program_change", "note_on", "trumpet", "ch1=56", "note  64"} {
		if !strings.Contains(out, want) {
			t.Errorf("timeline missing %q:\n%s", want, out)
		}
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if next.(Model).state != StateMenu {
		t.Error("esc should return to the menu")
	}
}

func TestDecodeError(t *testing.T) {
	m := New(nil)
	m.state = StateDecoding
	m.selectedFile = "broken.mid"

	next, _ := m.Update(decodeDoneMsg{err: errors.New("truncated track")})
	m = next.(Model)
	if m.state != StateError {
		t.Fatalf("state = %d, want StateError", m.state)
	}
	if !strings.Contains(m.View(), "truncated track") {
		t.Error("View() should show the decode error")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if next.(Model).state != StateMenu || next.(Model).err != nil {
		t.Error("enter should clear the error and return to the menu")
	}
}

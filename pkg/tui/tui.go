// Package tui provides a terminal timeline browser for MIDI files
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/notesampler/pkg/instrument"
	"github.com/james-see/notesampler/pkg/timeline"
)

var (
	accent = lipgloss.Color("#39FF14")
	warm   = lipgloss.Color("#FFD700")
	silver = lipgloss.Color("#C0C0C0")
	dark   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Background(dark).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silver).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(warm)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateDecoding
	StateTimeline
	StateError
)

var menuItems = []string{"Open MIDI file", "Exit"}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	viewport     viewport.Model
	resolver     *instrument.Resolver
	selectedFile string
	summary      timeline.Summary
	err          error
	width        int
	height       int
}

// decodeDoneMsg carries the result of decoding the selected file.
type decodeDoneMsg struct {
	summary timeline.Summary
	err     error
}

// New creates a new TUI model. A nil resolver uses the built-in table.
func New(resolver *instrument.Resolver) Model {
	if resolver == nil {
		resolver = instrument.Default()
	}

	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi", ".smf"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return Model{
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
		viewport:   viewport.New(80, 20),
		resolver:   resolver,
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs every message while it is open.
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateDecoding
			return m, tea.Batch(m.spinner.Tick, decodeFile(path, m.resolver))
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		m.viewport.Width = msg.Width - 6
		m.viewport.Height = msg.Height - 12
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateTimeline:
			return m.updateTimeline(msg)
		case StateError:
			return m.updateError(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case decodeDoneMsg:
		if msg.err != nil {
			m.state = StateError
			m.err = msg.err
			return m, nil
		}
		m.state = StateTimeline
		m.summary = msg.summary
		m.viewport.SetContent(RenderTimeline(msg.summary))
		m.viewport.GotoTop()
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if m.menuIndex == len(menuItems)-1 {
			return m, tea.Quit
		}
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateTimeline(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = StateMenu
		m.selectedFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateError(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func decodeFile(path string, resolver *instrument.Resolver) tea.Cmd {
	return func() tea.Msg {
		sess, err := timeline.Open(path, timeline.WithResolver(resolver))
		if err != nil {
			return decodeDoneMsg{err: err}
		}
		return decodeDoneMsg{summary: sess.Summary()}
	}
}

// RenderTimeline formats a decoded file as plain text, one event per line.
func RenderTimeline(sum timeline.Summary) string {
	var s strings.Builder

	fmt.Fprintf(&s, "type %d  resolution %d  tracks %d  duration %.3fs\n\n",
		sum.Type, sum.Resolution, sum.Tracks, sum.Duration)

	s.WriteString("track instruments:")
	for _, track := range sortedKeys(sum.TrackInstruments) {
		fmt.Fprintf(&s, " %d=%d", track, sum.TrackInstruments[track])
	}
	s.WriteString("\nchannel programs: ")
	for _, ch := range sortedKeys(sum.ChannelPrograms) {
		if p := sum.ChannelPrograms[ch]; p != 0 {
			fmt.Fprintf(&s, " ch%d=%d", ch, p)
		}
	}
	s.WriteString("\n\n")

	for _, r := range sum.Events {
		fmt.Fprintf(&s, "%9.3f  ch%-2d %-14s", r.Time, r.Channel, r.Type)
		if r.Note != nil {
			fmt.Fprintf(&s, " note %3d vel %3d", *r.Note, *r.Velocity)
		} else if r.Program != nil {
			fmt.Fprintf(&s, " program %3d     ", *r.Program)
		}
		if r.Group != nil {
			fmt.Fprintf(&s, "  %s", *r.Group)
		}
		s.WriteString("\n")
	}
	return s.String()
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" NOTESAMPLER "))
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateDecoding:
		s.WriteString(m.viewDecoding())
	case StateTimeline:
		s.WriteString(m.viewTimeline())
	case StateError:
		s.WriteString(m.viewError())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • esc: back • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder
	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render("▸ " + item))
		} else {
			s.WriteString(menuStyle.Render("  " + item))
		}
		s.WriteString("\n")
	}
	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	return "Pick a MIDI file\n\n" + m.filePicker.View()
}

func (m Model) viewDecoding() string {
	return boxStyle.Render(fmt.Sprintf("%s Decoding %s...", m.spinner.View(), filepath.Base(m.selectedFile)))
}

func (m Model) viewTimeline() string {
	header := statusStyle.Render(fmt.Sprintf("%s  %d events  %3.f%%",
		filepath.Base(m.selectedFile), len(m.summary.Events), m.viewport.ScrollPercent()*100))
	return header + "\n" + boxStyle.Render(m.viewport.View())
}

func (m Model) viewError() string {
	var s strings.Builder
	s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Decoding %s failed", filepath.Base(m.selectedFile))))
	s.WriteString("\n\n")
	s.WriteString(m.err.Error())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))
	return boxStyle.Render(s.String())
}

// Run starts the TUI application
func Run(resolver *instrument.Resolver) error {
	p := tea.NewProgram(New(resolver), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

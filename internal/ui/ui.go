// Package ui renders a live terminal view of a running conversion, fed by
// the engine's progress channel.
package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/crosstune/crosstune/internal/tasks"
)

// keyMap defines the [key.Binding] mapping for the progress view.
type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.quit}}
}

// snapshotMsg carries one progress snapshot into the update loop.
type snapshotMsg tasks.ProgressSnapshot

// channelClosedMsg signals that the engine finished and closed the channel.
type channelClosedMsg struct{}

// Model is the conversion progress view. It owns no conversion state of its
// own; everything shown comes from snapshots.
type Model struct {
	updates <-chan tasks.ProgressSnapshot
	last    tasks.ProgressSnapshot
	bar     progress.Model
	spin    spinner.Model
	help    help.Model
	keys    keyMap
	done    bool
	aborted bool
}

// NewModel builds the view around the engine's progress channel.
func NewModel(updates <-chan tasks.ProgressSnapshot) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title

	return Model{
		updates: updates,
		bar:     progress.New(progress.WithDefaultGradient()),
		spin:    s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Aborted reports whether the user quit before the conversion finished.
func (m Model) Aborted() bool { return m.aborted }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForSnapshot())
}

// waitForSnapshot blocks on the channel until the next snapshot arrives.
func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.updates
		if !ok {
			return channelClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			if !m.done {
				m.aborted = true
			}
			return m, tea.Quit
		}
		return m, nil

	case snapshotMsg:
		m.last = tasks.ProgressSnapshot(msg)
		if m.last.Stage == tasks.StageDone || m.last.Stage == tasks.StageError {
			m.done = true
			return m, tea.Quit
		}
		return m, m.waitForSnapshot()

	case channelClosedMsg:
		m.done = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	title := "Converting"
	if m.last.Playlist != "" {
		title = "Converting " + m.last.Playlist
	}

	view := styles.title.Render(title) + "\n"

	switch m.last.Stage {
	case tasks.StageError:
		view += styles.err.Render("✗ "+m.last.Message) + "\n"
	case tasks.StageDone:
		view += styles.ok.Render("✓ done") + "\n"
	default:
		view += fmt.Sprintf("%s %s", m.spin.View(), m.last.Stage)
		if m.last.Current != "" {
			view += styles.warn.Render(" " + m.last.Current)
		}
		view += "\n"

		if m.last.Total > 0 {
			ratio := float64(m.last.Processed) / float64(m.last.Total)
			view += m.bar.ViewAs(ratio) + "\n"
			view += styles.help.Render(fmt.Sprintf("%d/%d tracks", m.last.Processed, m.last.Total)) + "\n"
		}
	}

	view += "\n" + m.help.View(m.keys)
	return view
}

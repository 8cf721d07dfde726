package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/sounder/monitor"
)

// Controller is the slice of the monitor surface the watch view drives.
type Controller interface {
	PauseIndexing() error
	ResumeIndexing() error
	CancelIndexing() error
}

// stateMsg carries a monitor state update into the Bubble Tea loop.
type stateMsg monitor.State

// closedMsg signals the update stream is done.
type closedMsg struct{}

// WatchModel is the Bubble Tea model for the live watch view.
type WatchModel struct {
	collectionID string
	controller   Controller
	updates      <-chan monitor.State

	bar      progress.Model
	state    monitor.State
	cmdErr   error
	width    int
	quitting bool
}

// NewWatchModel creates a watch model consuming state updates.
func NewWatchModel(collectionID string, controller Controller, updates <-chan monitor.State) WatchModel {
	return WatchModel{
		collectionID: collectionID,
		controller:   controller,
		updates:      updates,
		bar:          progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m WatchModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.updates
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-20, 60)
		return m, nil

	case stateMsg:
		m.state = monitor.State(msg)
		return m, m.waitForUpdate()

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.cmdErr = m.controller.PauseIndexing()
			return m, nil
		case key.Matches(msg, keys.Resume):
			m.cmdErr = m.controller.ResumeIndexing()
			return m, nil
		case key.Matches(msg, keys.Cancel):
			m.cmdErr = m.controller.CancelIndexing()
			return m, nil
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Indexing " + m.collectionID))
	b.WriteString("\n")

	connState := string(m.state.ConnectionState)
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Connection:"),
		ConnectionStyle(connState).Render(connState)))

	snap := m.state.Progress
	if snap == nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Status:"),
			ValueStyle.Render("waiting for first frame")))
		return m.frame(b.String())
	}

	status := string(snap.Status)
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Status:"),
		StatusStyle(status).Render(status)))

	b.WriteString(fmt.Sprintf("%s %s %.1f%%\n",
		LabelStyle.Render("Progress:"),
		m.bar.ViewAs(snap.ProgressPercentage/100),
		snap.ProgressPercentage))

	if snap.TotalFiles > 0 {
		b.WriteString(fmt.Sprintf("%s %d / %d\n",
			LabelStyle.Render("Files:"),
			snap.FilesProcessed, snap.TotalFiles))
	}
	if snap.CurrentFile != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Current File:"),
			ValueStyle.Render(*snap.CurrentFile)))
	}
	b.WriteString(fmt.Sprintf("%s %d documents, %d chunks\n",
		LabelStyle.Render("Created:"),
		snap.DocumentsCreated, snap.ChunksCreated))

	if snap.ProcessingRate != nil {
		b.WriteString(fmt.Sprintf("%s %.1f files/s\n",
			LabelStyle.Render("Rate:"),
			*snap.ProcessingRate))
	}
	if snap.EtaSeconds != nil {
		eta := time.Duration(*snap.EtaSeconds * float64(time.Second)).Round(time.Second)
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("ETA:"),
			ValueStyle.Render(eta.String())))
	}
	if snap.ErrorsCount > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Errors:"),
			ErrorStyle.Render(fmt.Sprintf("%d", snap.ErrorsCount))))
	}
	if snap.LastError != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Last Error:"),
			ErrorStyle.Render(*snap.LastError)))
	}
	if m.cmdErr != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Command:"),
			ErrorStyle.Render(m.cmdErr.Error())))
	}

	return m.frame(b.String())
}

func (m WatchModel) frame(content string) string {
	help := HelpStyle.Render("p pause · r resume · c cancel · q quit")
	return BoxStyle.Render(content) + "\n" + help
}

// keyMap defines key bindings.
type keyMap struct {
	Quit   key.Binding
	Pause  key.Binding
	Resume key.Binding
	Cancel key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause"),
	),
	Resume: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "resume"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "cancel"),
	),
}

// RunWatch runs the live watch TUI until the update stream closes or
// the user quits.
func RunWatch(collectionID string, controller Controller, updates <-chan monitor.State) error {
	model := NewWatchModel(collectionID, controller, updates)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

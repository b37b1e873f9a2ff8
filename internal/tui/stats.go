// Package tui holds the Bubble Tea programs for the statistics and camera
// panels.
package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/view"
)

var (
	helpStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	frameStyle = lipgloss.NewStyle().Margin(1, 2)
)

// Reopen rebuilds the panel from the current statistics.
type Reopen func() (view.Panel, error)

// statsModel shows a rendered statistics panel in a scrollable viewport.
type statsModel struct {
	panel     view.Panel
	reopen    Reopen
	translate i18n.Translate
	viewport  viewport.Model
	err       error
	ready     bool
}

func newStatsModel(panel view.Panel, reopen Reopen, translate i18n.Translate) *statsModel {
	m := &statsModel{panel: panel, reopen: reopen, translate: translate}
	m.viewport = viewport.New(80, 24)
	m.viewport.SetContent(view.RenderPanel(panel, translate))
	return m
}

func (m *statsModel) Init() tea.Cmd { return nil }

func (m *statsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			m.refresh()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 4
		m.ready = true
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh reopens the panel. A failure keeps the previous panel on screen.
func (m *statsModel) refresh() {
	if m.reopen == nil {
		return
	}
	panel, err := m.reopen()
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.panel = panel
	m.viewport.SetContent(view.RenderPanel(panel, m.translate))
}

func (m *statsModel) View() string {
	body := m.viewport.View()
	if m.err != nil {
		body += "\n" + errorStyle.Render(m.err.Error())
	}
	body += "\n" + helpStyle.Render(m.translate("stats.help", nil))
	return frameStyle.Render(body)
}

// RunStats shows the panel until the user closes it.
func RunStats(panel view.Panel, reopen Reopen, translate i18n.Translate) error {
	p := tea.NewProgram(newStatsModel(panel, reopen, translate), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

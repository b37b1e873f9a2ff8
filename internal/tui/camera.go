package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/escombro/internal/camera"
	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/materials"
	"github.com/mwiater/escombro/internal/stats"
	"github.com/mwiater/escombro/internal/view"
)

// Capturer takes a full-quality picture and folds it.
type Capturer interface {
	Capture(ctx context.Context) (stats.ClassificationResult, error)
}

type (
	previewMsg    camera.Update
	previewClosed struct{}
	captureMsg    struct {
		result stats.ClassificationResult
		err    error
	}
)

var (
	liveStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
)

// cameraModel is the live detection panel.
type cameraModel struct {
	ctx       context.Context
	capturer  Capturer
	updates   <-chan camera.Update
	translate i18n.Translate
	spinner   spinner.Model

	last      *camera.Update
	status    string
	statusErr bool
	capturing bool
	captured  []stats.ClassificationResult
	closed    bool
}

func newCameraModel(ctx context.Context, capturer Capturer, updates <-chan camera.Update, translate i18n.Translate) *cameraModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &cameraModel{
		ctx:       ctx,
		capturer:  capturer,
		updates:   updates,
		translate: translate,
		spinner:   s,
		status:    translate("camera.connected", nil),
	}
}

func waitForPreview(updates <-chan camera.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return previewClosed{}
		}
		return previewMsg(u)
	}
}

func captureCmd(ctx context.Context, c Capturer) tea.Cmd {
	return func() tea.Msg {
		res, err := c.Capture(ctx)
		return captureMsg{result: res, err: err}
	}
}

func (m *cameraModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForPreview(m.updates))
}

func (m *cameraModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "c", " ":
			if m.capturing || m.closed {
				return m, nil
			}
			m.capturing = true
			m.status, m.statusErr = m.translate("camera.capture_processing", nil), false
			return m, captureCmd(m.ctx, m.capturer)
		}
	case previewMsg:
		u := camera.Update(msg)
		m.last = &u
		return m, waitForPreview(m.updates)
	case previewClosed:
		m.closed = true
		m.status, m.statusErr = m.translate("camera.disconnected", nil), false
		return m, tea.Quit
	case captureMsg:
		m.capturing = false
		if msg.err != nil {
			m.status, m.statusErr = fmt.Sprintf("%s: %v", m.translate("camera.capture_error", nil), msg.err), true
			return m, nil
		}
		m.captured = append(m.captured, msg.result)
		m.status, m.statusErr = m.translate("camera.capture_done", nil), false
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// livePrediction is the headline shown above the preview, like the web
// overlay: emoji and name, confidence, and the time of the last detection.
func (m *cameraModel) livePrediction() (headline, confidence, when string) {
	if m.last == nil || m.last.Err != nil {
		return "📷 " + m.translate("camera.point", nil), "", ""
	}
	r := m.last.Result
	headline = r.PredictedClass
	if cls, err := r.Class(); err == nil {
		headline = cls.Emoji() + " " + view.ClassLabel(cls, m.translate)
	}
	confidence = lipgloss.NewStyle().Foreground(lipgloss.Color(materials.ConfidenceColor(r.Confidence))).
		Render(fmt.Sprintf("%.1f%%", r.Confidence))
	when = m.translate("camera.last_detection", map[string]any{"time": m.last.At.Format("15:04:05")})
	return headline, confidence, when
}

func (m *cameraModel) View() string {
	var b strings.Builder
	headline, confidence, when := m.livePrediction()
	b.WriteString(m.spinner.View() + " " + liveStyle.Render(headline))
	if confidence != "" {
		b.WriteString("  " + confidence)
	}
	b.WriteString("\n")
	if when != "" {
		b.WriteString(helpStyle.Render(when) + "\n")
	}
	if m.last != nil && m.last.Err != nil {
		b.WriteString(errorStyle.Render(m.last.Err.Error()) + "\n")
	}
	b.WriteString("\n")
	if m.statusErr {
		b.WriteString(errorStyle.Render(m.status))
	} else {
		b.WriteString(statusStyle.Render(m.status))
	}
	if n := len(m.captured); n > 0 {
		b.WriteString("\n\n" + view.RenderCard(m.captured[n-1], m.translate))
	}
	b.WriteString("\n\n" + helpStyle.Render(m.translate("camera.help", nil)))
	return frameStyle.Render(b.String())
}

// RunCamera drives the live panel until the user quits or the preview
// stream ends. It returns every result captured during the run.
func RunCamera(ctx context.Context, capturer Capturer, updates <-chan camera.Update, translate i18n.Translate) ([]stats.ClassificationResult, error) {
	m := newCameraModel(ctx, capturer, updates, translate)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return m.captured, err
	}
	return m.captured, nil
}

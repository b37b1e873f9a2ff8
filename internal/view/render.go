package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/materials"
	"github.com/mwiater/escombro/internal/stats"
	"github.com/mwiater/escombro/internal/util"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Faint(true)
	valueStyle = lipgloss.NewStyle().Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	cardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const (
	barWidth   = 30
	labelWidth = 18
	cardWidth  = 48
)

// RenderSummary draws the three header fields.
func RenderSummary(s Summary, translate i18n.Translate) string {
	rows := []string{
		field(translate("stats.total_processed", nil), fmt.Sprintf("%d", s.Total)),
		field(translate("stats.avg_confidence", nil), s.Mean),
		field(translate("stats.most_common", nil), s.MostCommon),
	}
	return strings.Join(rows, "\n")
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// RenderPanel draws the header and both charts as terminal bars.
func RenderPanel(p Panel, translate i18n.Translate) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(translate("stats.title", nil)))
	b.WriteString("\n\n")
	b.WriteString(RenderSummary(p.Summary, translate))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render(translate("stats.class_chart_title", nil)))
	b.WriteString("\n")
	maxCount := 0
	for _, s := range p.Distribution {
		maxCount = max(maxCount, s.Count)
	}
	for _, s := range p.Distribution {
		label := util.TruncateRunes(s.Class.Emoji()+" "+s.Label, labelWidth)
		b.WriteString(barRow(label, s.Count, maxCount, s.Color))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(translate("stats.confidence_chart_title", nil)))
	b.WriteString("\n")
	maxCount = 0
	for _, h := range p.Histogram {
		maxCount = max(maxCount, h.Count)
	}
	for _, h := range p.Histogram {
		b.WriteString(barRow(h.Label, h.Count, maxCount, "#3498db"))
	}

	if p.Charts.Dir != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(translate("stats.charts_saved", map[string]any{"dir": p.Charts.Dir})))
	}
	return panelStyle.Render(b.String())
}

func barRow(label string, count, maxCount int, hex string) string {
	filled := 0
	if maxCount > 0 {
		filled = count * barWidth / maxCount
	}
	if count > 0 && filled == 0 {
		filled = 1
	}
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(strings.Repeat("█", filled))
	pad := lipgloss.NewStyle().Width(labelWidth).Render(label)
	return fmt.Sprintf("%s %s %d\n", pad, bar+strings.Repeat(" ", barWidth-filled), count)
}

// RenderCard draws one classification result the way the web grid does:
// emoji, class name, confidence graded by color, and the probability list.
func RenderCard(r stats.ClassificationResult, translate i18n.Translate) string {
	var b strings.Builder
	border := "240"
	header := r.PredictedClass
	if cls, err := r.Class(); err == nil {
		header = cls.Emoji() + " " + ClassLabel(cls, translate)
		border = cls.CardColor()
	}
	b.WriteString(valueStyle.Render(header))
	b.WriteString("\n")
	if r.Filename != "" {
		b.WriteString(labelStyle.Render(util.TruncateRunes(r.Filename, cardWidth-4)))
		b.WriteString("\n")
	}
	confidence := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(materials.ConfidenceColor(r.Confidence))).
		Render(fmt.Sprintf("%.1f%%", r.Confidence))
	b.WriteString(field(translate("results.confidence", nil), confidence))

	if len(r.Probabilities) > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(translate("results.probabilities", nil)))
		for _, p := range r.Probabilities {
			name := p.DisplayName
			if cls, err := materials.Parse(p.ClassName); err == nil {
				name = ClassLabel(cls, translate)
			}
			if name == "" {
				name = p.ClassName
			}
			b.WriteString(fmt.Sprintf("\n  %-16s %5.1f%%", util.TruncateRunes(name, 16), p.Probability))
		}
	}
	return cardStyle.BorderForeground(lipgloss.Color(border)).Width(cardWidth).Render(b.String())
}

// RenderNotice wraps a notification to width columns. The prefix (usually
// an icon) starts the first line and later lines are indented under it.
func RenderNotice(prefix, message string, width int) string {
	pad := lipgloss.Width(prefix)
	lines := strings.Split(util.WrapToWidth(message, max(width-pad, 1)), "\n")
	indent := strings.Repeat(" ", pad)
	for i := range lines {
		if i == 0 {
			lines[i] = prefix + lines[i]
		} else {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// Package view projects session statistics into the text fields and charts
// shown by the statistics panel.
package view

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/logging"
	"github.com/mwiater/escombro/internal/materials"
	"github.com/mwiater/escombro/internal/stats"
)

// ErrNoData is returned by OpenPanel while nothing has been processed.
var ErrNoData = errors.New("no statistics to show")

const (
	pieFile       = "class_distribution.png"
	histogramFile = "confidence_histogram.png"
)

// Summary holds the three text fields of the statistics header.
type Summary struct {
	Total      int
	Mean       string
	MostCommon string
}

// Slice is one localized entry of the class distribution chart.
type Slice struct {
	Class materials.Class
	Label string
	Count int
	Color string
}

// Panel is everything the statistics panel displays.
type Panel struct {
	Summary      Summary
	Distribution []Slice
	Histogram    []stats.Bucket
	Charts       ChartSet
}

// ChartSet lists the files written for the current panel.
type ChartSet struct {
	Dir       string
	Pie       string
	Histogram string
}

// Summarize projects s into the header fields using translate for labels.
func Summarize(s stats.SessionStats, translate i18n.Translate) Summary {
	out := Summary{
		Total: s.TotalProcessed,
		Mean:  fmt.Sprintf("%.1f%%", s.MeanConfidence()),
	}
	id, count, ok := s.MostCommon()
	if !ok {
		out.MostCommon = translate("stats.no_data", nil)
		return out
	}
	cls, err := materials.Parse(id)
	if err != nil {
		out.MostCommon = fmt.Sprintf("%s (%d)", id, count)
		return out
	}
	out.MostCommon = fmt.Sprintf("%s %s (%d)", cls.Emoji(), ClassLabel(cls, translate), count)
	return out
}

// ClassLabel is the localized display name, or the catalog name when the
// active catalog has no entry.
func ClassLabel(cls materials.Class, translate i18n.Translate) string {
	key := cls.TranslationKey()
	if label := translate(key, nil); label != "" && label != key {
		return label
	}
	return cls.DisplayName()
}

// Distribution returns one slice per catalog class, zero counts included,
// colored by slot order.
func Distribution(s stats.SessionStats, translate i18n.Translate) []Slice {
	shares := s.Distribution()
	out := make([]Slice, len(shares))
	for i, sh := range shares {
		out[i] = Slice{
			Class: sh.Class,
			Label: ClassLabel(sh.Class, translate),
			Count: sh.Count,
			Color: materials.ChartColor(i),
		}
	}
	return out
}

// View keeps the latest header and owns the chart files on disk.
type View struct {
	mu        sync.Mutex
	chartsDir string
	translate i18n.Translate
	summary   Summary
	charts    *ChartSet
}

// New returns a View writing charts under chartsDir.
func New(chartsDir string, translate i18n.Translate) *View {
	return &View{chartsDir: chartsDir, translate: translate}
}

// Refresh recomputes the header. It is registered as a store listener.
func (v *View) Refresh(s stats.SessionStats) {
	summary := Summarize(s, v.translate)
	v.mu.Lock()
	v.summary = summary
	v.mu.Unlock()
}

// Summary returns the header computed by the last Refresh.
func (v *View) Summary() Summary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.summary
}

// Charts returns the chart set currently on disk, if any.
func (v *View) Charts() (ChartSet, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.charts == nil {
		return ChartSet{}, false
	}
	return *v.charts, true
}

// OpenPanel builds the panel for s. The previous chart set is discarded
// before the new one is drawn.
func (v *View) OpenPanel(s stats.SessionStats) (Panel, error) {
	if s.TotalProcessed == 0 {
		return Panel{}, ErrNoData
	}
	panel := Panel{
		Summary:      Summarize(s, v.translate),
		Distribution: Distribution(s, v.translate),
		Histogram:    s.Histogram(),
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.discardLocked()

	if err := os.MkdirAll(v.chartsDir, 0o755); err != nil {
		return Panel{}, fmt.Errorf("create charts dir: %w", err)
	}
	set := ChartSet{
		Dir:       v.chartsDir,
		Pie:       filepath.Join(v.chartsDir, pieFile),
		Histogram: filepath.Join(v.chartsDir, histogramFile),
	}
	if err := writePie(set.Pie, v.translate("stats.class_chart_title", nil), panel.Distribution); err != nil {
		return Panel{}, err
	}
	if err := writeHistogram(set.Histogram, v.translate("stats.confidence_chart_title", nil),
		v.translate("stats.count_label", nil), panel.Histogram); err != nil {
		os.Remove(set.Pie)
		return Panel{}, err
	}
	v.charts = &set
	panel.Charts = set
	logging.LogEvent("charts written to %s", v.chartsDir)
	return panel, nil
}

// Discard removes the current chart files.
func (v *View) Discard() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.discardLocked()
}

func (v *View) discardLocked() {
	if v.charts == nil {
		return
	}
	for _, p := range []string{v.charts.Pie, v.charts.Histogram} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.LogWarn("remove chart %s: %v", p, err)
		}
	}
	v.charts = nil
}

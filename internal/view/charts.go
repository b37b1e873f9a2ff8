package view

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/mwiater/escombro/internal/stats"
	"github.com/mwiater/escombro/internal/util"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	chartWidth  = 640
	chartHeight = 480
)

const (
	legendWidth    = 220
	legendSwatch   = 14
	legendRow      = 24
	legendFontSize = 11
	legendLeft     = chartWidth + 16
	legendTop      = 60
)

type legendEntry struct {
	label string
	color drawing.Color
}

// legendEntries lists every slice, zero counts included. go-chart drops
// zero-valued slices from the pie itself, so the legend is what keeps the
// full catalog visible.
func legendEntries(slices []Slice) []legendEntry {
	out := make([]legendEntry, len(slices))
	for i, s := range slices {
		out[i] = legendEntry{
			label: fmt.Sprintf("%s (%d)", s.Label, s.Count),
			color: drawing.ColorFromHex(strings.TrimPrefix(s.Color, "#")),
		}
	}
	return out
}

// pieLegend draws one swatch and label per entry, starting at left/top.
func pieLegend(entries []legendEntry, left, top int) chart.Renderable {
	return func(r chart.Renderer, _ chart.Box, defaults chart.Style) {
		text := chart.Style{
			Font:      defaults.GetFont(),
			FontSize:  legendFontSize,
			FontColor: drawing.ColorBlack,
		}
		for i, e := range entries {
			y := top + i*legendRow
			chart.Draw.Box(r, legendSwatchBox(left, y), chart.Style{
				FillColor:   e.color,
				StrokeColor: e.color,
				StrokeWidth: 1,
			})
			text.GetTextOptions().WriteToRenderer(r)
			r.Text(e.label, left+legendSwatch+8, y+legendSwatch-2)
		}
	}
}

func legendSwatchBox(left, top int) chart.Box {
	return chart.Box{Top: top, Left: left, Right: left + legendSwatch, Bottom: top + legendSwatch}
}

func writePie(path, title string, slices []Slice) error {
	values := make([]chart.Value, 0, len(slices))
	for _, s := range slices {
		if s.Count == 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: strconv.Itoa(s.Count),
			Value: float64(s.Count),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(strings.TrimPrefix(s.Color, "#")),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 2,
			},
		})
	}
	pie := chart.PieChart{
		Title:  title,
		Width:  chartWidth + legendWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: legendWidth, Bottom: 20},
		},
		Values:   values,
		Elements: []chart.Renderable{pieLegend(legendEntries(slices), legendLeft, legendTop)},
	}
	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render distribution chart: %w", err)
	}
	if err := util.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var histogramFill = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}

func writeHistogram(path, title, yLabel string, buckets []stats.Bucket) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Y.Min = 0

	values := make(plotter.Values, len(buckets))
	labels := make([]string, len(buckets))
	for i, b := range buckets {
		values[i] = float64(b.Count)
		labels[i] = b.Label
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	bars.Color = histogramFill
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	wt, err := p.WriterTo(vg.Points(chartWidth), vg.Points(chartHeight), "png")
	if err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode histogram: %w", err)
	}
	if err := util.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

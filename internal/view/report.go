package view

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"github.com/mwiater/escombro/internal/i18n"
)

const (
	reportMargin   = 15.0
	reportWidth    = 180.0
	reportLine     = 7.0
	reportChartW   = 120.0
	reportChartH   = 90.0
	reportLabelCol = 120.0
)

// WriteReport renders an opened panel as a one-document PDF: the header
// fields, both tables and the chart images written by OpenPanel.
func WriteReport(path string, p Panel, translate i18n.Translate) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(reportMargin, reportMargin, reportMargin)
	pdf.SetAutoPageBreak(true, reportMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	heading := func(text string) {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(reportWidth, reportLine+3, tr(text), "", 1, "L", false, 0, "")
	}
	row := func(label, value string, fill bool) {
		pdf.CellFormat(reportLabelCol, reportLine, tr(label), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(reportWidth-reportLabelCol, reportLine, tr(value), "1", 1, "R", fill, 0, "")
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(reportWidth, reportLine+5, tr(translate("stats.title", nil)), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	row(translate("stats.total_processed", nil), strconv.Itoa(p.Summary.Total), false)
	row(translate("stats.avg_confidence", nil), p.Summary.Mean, false)
	row(translate("stats.most_common", nil), plainLabel(p.Summary.MostCommon), false)
	pdf.Ln(4)

	heading(translate("stats.class_chart_title", nil))
	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, s := range p.Distribution {
		row(s.Label, strconv.Itoa(s.Count), i%2 == 1)
	}
	pdf.Ln(4)

	heading(translate("stats.confidence_chart_title", nil))
	pdf.SetFont("Arial", "", 10)
	for i, h := range p.Histogram {
		row(h.Label, strconv.Itoa(h.Count), i%2 == 1)
	}

	for _, chart := range []string{p.Charts.Pie, p.Charts.Histogram} {
		if chart == "" {
			continue
		}
		if _, err := os.Stat(chart); err != nil {
			continue
		}
		pdf.AddPage()
		x := reportMargin + (reportWidth-reportChartW)/2
		pdf.ImageOptions(chart, x, pdf.GetY(), reportChartW, reportChartH, false,
			gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return pdf.OutputFileAndClose(path)
}

// plainLabel drops the leading emoji core fonts cannot draw.
func plainLabel(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

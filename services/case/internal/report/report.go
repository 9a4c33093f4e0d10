// Package report renders the governance oversight table for archival printing.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/workflow"
)

// Format is an export format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a requested format. Empty means PDF.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", apperrors.Validation(fmt.Sprintf("unsupported report format %q", s))
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// Data is everything a report shows.
type Data struct {
	Title       string
	Programme   string
	GeneratedAt time.Time
	GeneratedBy string
	Summary     *model.CaseSummary
	Cases       []*model.IncidentCase
}

// Filename returns the suggested download name.
func (d *Data) Filename(f Format) string {
	scope := "all"
	if d.Programme != "" {
		scope = strings.ReplaceAll(strings.ToLower(d.Programme), " ", "-")
	}
	return fmt.Sprintf("oversight-%s-%s.%s", scope, d.GeneratedAt.Format("20060102"), f)
}

var columns = []struct {
	header string
	width  float64 // mm in PDF, characters in XLSX
}{
	{"Case", 20},
	{"Date", 20},
	{"Programme", 28},
	{"Category", 20},
	{"Urgency", 18},
	{"Status", 20},
	{"Step", 32},
	{"Decision", 32},
}

func row(c *model.IncidentCase) []string {
	step := workflow.StepLabel(c.CurrentStep)
	if c.DecisionNote != "" {
		step = workflow.StepLabel(0)
	}
	return []string{
		c.ID,
		c.CreatedAt.Format("2006-01-02"),
		c.Programme,
		string(c.Category),
		string(c.Urgency),
		string(c.Status),
		fmt.Sprintf("%d. %s", c.CurrentStep, step),
		c.DecisionNote,
	}
}

func summaryLines(s *model.CaseSummary) [][2]string {
	if s == nil {
		return nil
	}
	lines := [][2]string{
		{"Total cases", strconv.FormatInt(s.TotalCases, 10)},
		{"Critical", strconv.FormatInt(s.CriticalCases, 10)},
		{"Pending", strconv.FormatInt(s.PendingCases, 10)},
		{"In progress", strconv.FormatInt(s.ProcessingCases, 10)},
		{"Closed", strconv.FormatInt(s.ClosedCases, 10)},
		{"Awaiting archival", strconv.FormatInt(s.AwaitingArchival, 10)},
		{"False reports", strconv.FormatInt(s.FalseReports, 10)},
		{"AI detected", strconv.FormatInt(s.AIDetectedCases, 10)},
	}

	programmes := make([]string, 0, len(s.ByProgramme))
	for p := range s.ByProgramme {
		programmes = append(programmes, p)
	}
	sort.Strings(programmes)
	for _, p := range programmes {
		lines = append(lines, [2]string{"Programme: " + p, strconv.FormatInt(s.ByProgramme[p], 10)})
	}
	return lines
}

// Render produces the report in the requested format.
func Render(f Format, d *Data) ([]byte, error) {
	switch f {
	case FormatPDF:
		return renderPDF(d)
	case FormatXLSX:
		return renderXLSX(d)
	}
	return nil, apperrors.Validation(fmt.Sprintf("unsupported report format %q", f))
}

func renderPDF(d *Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range columns {
			pdf.CellFormat(col.width, 7, col.header, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 7)
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(d.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	scope := "All programmes"
	if d.Programme != "" {
		scope = d.Programme
	}
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s | generated %s by %s", scope, d.GeneratedAt.Format("2006-01-02 15:04 MST"), d.GeneratedBy)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	for _, line := range summaryLines(d.Summary) {
		pdf.CellFormat(50, 5, tr(line[0]), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 5, line[1], "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	header()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, c := range d.Cases {
		if pdf.GetY()+6 > pageHeight-bottom-10 {
			pdf.AddPage()
			header()
		}
		for i, v := range row(c) {
			pdf.CellFormat(columns[i].width, 6, truncate(tr(v), int(columns[i].width/1.6)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(d.Cases) == 0 {
		pdf.CellFormat(0, 6, "No cases", "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(d *Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const casesSheet, summarySheet = "Cases", "Summary"
	if err := f.SetSheetName("Sheet1", casesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(casesSheet, cell, col.header); err != nil {
			return nil, err
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(casesSheet, name, name, col.width); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(casesSheet, "A1", last, bold); err != nil {
		return nil, err
	}

	for r, c := range d.Cases {
		for i, v := range row(c) {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(casesSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := f.SetCellValue(summarySheet, "A1", d.Title); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(summarySheet, "A2", d.GeneratedAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", bold); err != nil {
		return nil, err
	}
	for i, line := range summaryLines(d.Summary) {
		r := i + 4
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), line[0]); err != nil {
			return nil, err
		}
		n, _ := strconv.ParseInt(line[1], 10, 64)
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), n); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 32); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

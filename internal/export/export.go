// Package export renders a history window as a spreadsheet or a PDF summary.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/charts"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Content types of the rendered files.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

var readingHeaders = []string{
	"Key", "Updated At", "Seat Status", "Light Status",
	"Distance (cm)", "Pressure (FSR)", "Light (AO)", "Light (DO)",
}

// Filename names an export of w generated at now.
func Filename(w history.Window, format string, now time.Time) string {
	return fmt.Sprintf("study-space-%dmin-%s.%s", w.WindowMinutes, now.UTC().Format("20060102-150405"), format)
}

// BuildXLSX renders w with a summary sheet and one row per reading.
func BuildXLSX(w history.Window, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	counts := charts.StatusCounts(w.Rows)

	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	readingsSheet := "readings"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Study Space History")
	_ = f.SetCellValue(summarySheet, "A3", "Window (minutes)")
	_ = f.SetCellValue(summarySheet, "B3", w.WindowMinutes)
	_ = f.SetCellValue(summarySheet, "A4", "Readings")
	_ = f.SetCellValue(summarySheet, "B4", len(w.Rows))
	_ = f.SetCellValue(summarySheet, "A5", "Occupied")
	_ = f.SetCellValue(summarySheet, "B5", counts.Occupied)
	_ = f.SetCellValue(summarySheet, "A6", "Reserved")
	_ = f.SetCellValue(summarySheet, "B6", counts.Reserved)
	_ = f.SetCellValue(summarySheet, "A7", "Available")
	_ = f.SetCellValue(summarySheet, "B7", counts.Available)

	for i, h := range readingHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(readingsSheet, cell, h)
	}
	for i, r := range w.Rows {
		row := i + 2
		updated := ""
		if at := r.UpdatedAt(); !at.IsZero() {
			updated = at.In(loc).Format(time.DateTime)
		}
		values := []any{
			r.Key, updated, string(r.SeatStatus), string(r.LightStatus),
			r.DistanceCm, r.PressureRaw, r.LightAnalog, r.LightDigital,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(readingsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a one-page summary of w followed by the reading table.
func BuildPDF(w history.Window, loc *time.Location, generated time.Time) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	counts := charts.StatusCounts(w.Rows)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Study Space History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Window: last %d minutes", w.WindowMinutes))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.In(loc).Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", len(w.Rows)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Occupied: %d  Reserved: %d  Available: %d",
		counts.Occupied, counts.Reserved, counts.Available))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(38, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Seat", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Light", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Distance (cm)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Pressure", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Light AO", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, r := range w.Rows {
		pdf.CellFormat(38, 6, charts.TimeLabel(r.UpdatedAtMs, loc), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, string(r.SeatStatus), "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, string(r.LightStatus), "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.1f", r.DistanceCm), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%d", r.PressureRaw), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, fmt.Sprintf("%d", r.LightAnalog), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

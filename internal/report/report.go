// Package report renders the current event table and its summary
// statistics into downloadable documents.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/seismicguard/seismicguard/internal/domain"
)

// BuildPDF renders a summary report for the table.
func BuildPDF(table domain.EventTable, generatedAt time.Time) ([]byte, error) {
	summary := domain.Describe(table)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "SeismicGuard Event Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Events: %d", table.Len()))
	pdf.Ln(5)
	if mag, rec, ok := peakLine(table); ok {
		pdf.Cell(0, 6, fmt.Sprintf("Peak magnitude: %.1f M at %s", mag, rec.Location))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Field", "1", 0, "C", false, 0, "")
	for _, h := range []string{"Count", "Mean", "StdDev", "Min", "P25", "P50", "P75", "Max"} {
		pdf.CellFormat(20, 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, field := range summaryFields(summary) {
		s := summary[field]
		pdf.CellFormat(30, 6, field, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", s.Count), "1", 0, "R", false, 0, "")
		for _, v := range []float64{s.Mean, s.StdDev, s.Min, s.P25, s.P50, s.P75, s.Max} {
			pdf.CellFormat(20, 6, fmt.Sprintf("%.2f", v), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf report: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the same report as a workbook: one summary sheet and
// one sheet with the full event table.
func BuildXLSX(table domain.EventTable, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	eventsSheet := "events"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(eventsSheet); err != nil {
		return nil, fmt.Errorf("render xlsx report: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", "SeismicGuard Event Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Events")
	_ = f.SetCellValue(summarySheet, "B4", table.Len())

	headers := []string{"Field", "Count", "Mean", "StdDev", "Min", "P25", "P50", "P75", "Max"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 6)
		_ = f.SetCellValue(summarySheet, cell, h)
	}
	summary := domain.Describe(table)
	for i, field := range summaryFields(summary) {
		s := summary[field]
		row := 7 + i
		values := []any{field, s.Count, s.Mean, s.StdDev, s.Min, s.P25, s.P50, s.P75, s.Max}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(summarySheet, cell, v)
		}
	}

	for i, h := range []string{"Time", "Magnitude", "Location", "Depth", "Lat", "Lon"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(eventsSheet, cell, h)
	}
	for i, rec := range table.Records() {
		row := i + 2
		values := []any{rec.Time.Format(time.RFC3339), rec.Magnitude, rec.Location, rec.Depth, rec.Lat, rec.Lon}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(eventsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render xlsx report: %w", err)
	}
	return buf.Bytes(), nil
}

func peakLine(table domain.EventTable) (float64, domain.EventRecord, bool) {
	rec, ok := domain.PeakRecord(table)
	if !ok {
		return 0, domain.EventRecord{}, false
	}
	return rec.Magnitude, rec, true
}

// summaryFields returns the summary keys in a stable order for rendering.
func summaryFields(summary map[string]domain.FieldSummary) []string {
	fields := make([]string, 0, len(summary))
	for f := range summary {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

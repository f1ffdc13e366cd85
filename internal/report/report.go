package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"campusattend/internal/attendance"
	"campusattend/internal/timeutil"
)

var columns = []string{"Student ID", "Name", "Status", "Timestamp"}

// Build returns attendance events within [from, to], ascending by timestamp.
func Build(ctx context.Context, repo *attendance.Repository, from, to time.Time) ([]attendance.Event, error) {
	return repo.ListAttendanceBetween(ctx, from, to)
}

// Filename returns the artifact name for a freshly generated report.
func Filename(ext string) string {
	return fmt.Sprintf("attendance_report_%s.%s", time.Now().Format("20060102_150405"), ext)
}

// RenderPDF renders events into a landscape A4 table with a generation-time
// footer. Empty input yields a single "No records available" placeholder row.
func RenderPDF(rows []attendance.Event) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("University Attendance Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "University Attendance Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	colWidths := []float64{50, 90, 40, 60}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(76, 175, 80)
	pdf.SetTextColor(255, 255, 255)
	for i, col := range columns {
		pdf.CellFormat(colWidths[i], 9, col, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)

	if len(rows) == 0 {
		cells := []string{"-", "-", "-", "No records available"}
		for i, cell := range cells {
			pdf.CellFormat(colWidths[i], 8, cell, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, row := range rows {
		cells := []string{row.StudentID, row.Name, row.Status, row.Timestamp}
		for i, cell := range cells {
			pdf.CellFormat(colWidths[i], 8, cell, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "Generated on "+timeutil.Now(), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderCSV renders events with the same columns as the PDF. Empty input
// yields header-only output.
func RenderCSV(rows []attendance.Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"ID"}, columns...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.StudentID,
			row.Name,
			row.Status,
			row.Timestamp,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("render csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return buf.Bytes(), nil
}

package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/attendance"
)

func sampleRows() []attendance.Event {
	return []attendance.Event{
		{ID: 1, StudentID: "S1", Name: "Alice", Status: attendance.StatusLogin, Timestamp: "2025-08-21 08:45:00"},
		{ID: 2, StudentID: "S1", Name: "Alice", Status: attendance.StatusLogout, Timestamp: "2025-08-21 12:15:00"},
		{ID: 3, StudentID: "S2", Name: "Bob", Status: attendance.StatusLogin, Timestamp: "2025-08-21 09:30:00"},
	}
}

func TestRenderCSV(t *testing.T) {
	data, err := RenderCSV(sampleRows())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4, "header plus one line per event")
	assert.Equal(t, "ID,Student ID,Name,Status,Timestamp", lines[0])
	assert.Equal(t, "1,S1,Alice,login,2025-08-21 08:45:00", lines[1])
	assert.Equal(t, "3,S2,Bob,login,2025-08-21 09:30:00", lines[3])
}

func TestRenderCSVEmpty(t *testing.T) {
	data, err := RenderCSV(nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "empty input yields header-only output")
	assert.Equal(t, "ID,Student ID,Name,Status,Timestamp", lines[0])
}

func TestRenderPDF(t *testing.T) {
	data, err := RenderPDF(sampleRows())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output must be a PDF document")
	assert.Greater(t, len(data), 500)
}

func TestRenderPDFEmpty(t *testing.T) {
	// An empty range still produces a valid document with a placeholder row.
	data, err := RenderPDF(nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Greater(t, len(data), 500)
}

func TestFilename(t *testing.T) {
	name := Filename("pdf")
	assert.True(t, strings.HasPrefix(name, "attendance_report_"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))
}

package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/seismicguard/seismicguard/internal/domain"
)

func testTable() domain.EventTable {
	return domain.NewEventTable([]domain.EventRecord{
		{Time: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), Magnitude: 3.1, Location: "Honshu", Depth: 10, Lat: 38.3, Lon: 142.4},
		{Time: time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC), Magnitude: 5.8, Location: "Fiji region", Depth: 600, Lat: -17.8, Lon: 178.1},
		{Time: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC), Magnitude: 2.0, Location: "Alaska", Depth: 35, Lat: 61.2, Lon: -149.9},
	})
}

func TestBuildPDF(t *testing.T) {
	data, err := BuildPDF(testTable(), time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output should be a PDF document")
}

func TestBuildPDF_EmptyTable(t *testing.T) {
	data, err := BuildPDF(domain.NewEventTable(nil), time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestBuildXLSX(t *testing.T) {
	data, err := BuildXLSX(testTable(), time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"summary", "events"}, f.GetSheetList())

	count, err := f.GetCellValue("summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "3", count)

	rows, err := f.GetRows("events")
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + three events
	assert.Equal(t, []string{"Time", "Magnitude", "Location", "Depth", "Lat", "Lon"}, rows[0])
	assert.Equal(t, "Fiji region", rows[2][2])
}

func TestBuildXLSX_EmptyTable(t *testing.T) {
	data, err := BuildXLSX(domain.NewEventTable(nil), time.Now())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("events")
	require.NoError(t, err)
	require.Len(t, rows, 1) // header only
}

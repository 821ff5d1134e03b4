package logger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/telemetry"
)

func testFrame() *telemetry.DataFrame {
	return &telemetry.DataFrame{
		RPM:      2500,
		Throttle: 0.4,
		Running:  true,
		Cylinders: []telemetry.CylinderFrame{
			{Temperature: 900, Pressure: 250_000, Mode: "COMBUST", Fuel: 0.0005},
			{Temperature: 450, Pressure: 90_000, Mode: "INJECT", Fuel: 0.001},
		},
	}
}

func readOnlyCSV(t *testing.T, dir string) [][]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "exactly one log file expected")

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRecordWritesHeaderAndRow(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: true, Path: dir, IntervalMs: 50})
	defer l.Close()

	l.Record(testFrame())

	rows := readOnlyCSV(t, dir)
	require.Len(t, rows, 2)

	header := rows[0]
	assert.Equal(t, "timestamp", header[0])
	assert.Equal(t, "rpm", header[1])
	assert.Equal(t, "cyl0_temp_k", header[5])
	assert.Len(t, header, 5+maxCylinders*4)

	row := rows[1]
	assert.Equal(t, "2500.0", row[1])
	assert.Equal(t, "0.40", row[2])
	assert.Equal(t, "0", row[3])
	assert.Equal(t, "1", row[4])
	assert.Equal(t, "900.0", row[5])
	assert.Equal(t, "250.0", row[6])
	assert.Equal(t, "COMBUST", row[7])
	assert.Equal(t, "0.500", row[8])
	assert.Equal(t, "INJECT", row[11])

	// Columns beyond the populated cylinders stay empty.
	assert.Equal(t, "", row[13])

	_, err := time.Parse(time.RFC3339Nano, row[0])
	assert.NoError(t, err)
}

func TestRecordThrottlesByInterval(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: true, Path: dir, IntervalMs: 10_000})
	defer l.Close()

	for i := 0; i < 10; i++ {
		l.Record(testFrame())
	}

	rows := readOnlyCSV(t, dir)
	assert.Len(t, rows, 2, "back-to-back records inside the interval must collapse to one row")
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: false, Path: dir})
	defer l.Close()

	l.Record(testFrame())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetEnabledToggles(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: false, Path: dir, IntervalMs: 50})
	defer l.Close()

	assert.False(t, l.IsEnabled())
	l.SetEnabled(true)
	assert.True(t, l.IsEnabled())

	l.Record(testFrame())
	rows := readOnlyCSV(t, dir)
	assert.Len(t, rows, 2)
}

func TestRecordNilFrame(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: true, Path: dir})
	defer l.Close()

	l.Record(nil)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

package export_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Edwouard/SenegalAirWatch/internal/explorer"
	"github.com/Edwouard/SenegalAirWatch/internal/export"
)

func fixedClock() func() time.Time {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func testResult() *explorer.ExplorationResult {
	started := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	first := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)

	result := &explorer.ExplorationResult{
		RunID:       "run-fixed",
		CountryISO:  "SN",
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Minute),
		Stations: []*explorer.Station{
			{
				ID:               1,
				Name:             "Dakar-Plateau",
				Locality:         "Dakar",
				CountryCode:      "SN",
				Latitude:         14.69,
				Longitude:        -17.44,
				HasCoordinates:   true,
				Owner:            "UCAD",
				Provider:         "AirNow",
				IsMonitor:        true,
				FirstMeasurement: &first,
				LastMeasurement:  &last,
				Sensors: []*explorer.Sensor{
					{
						ID:   11,
						Name: "pm25 sensor",
						Parameter: explorer.ParameterInfo{
							Code:        "pm25",
							DisplayName: "PM2.5",
							Unit:        "µg/m³",
							Resolved:    true,
							Strategy:    explorer.StrategyNameUnits,
						},
					},
					{
						ID:        12,
						Name:      "odd sensor",
						Parameter: explorer.ParameterInfo{Raw: map[string]any{"x": 1}},
					},
				},
			},
			{
				ID:      2,
				Name:    "Thies",
				Sensors: []*explorer.Sensor{},
			},
		},
		Failures: []explorer.Failure{
			{Kind: explorer.FailureTransient, Resource: "sensors", StationID: 2, StationName: "Thies", Message: "boom"},
		},
	}
	return result
}

func newExporter(t *testing.T) (*export.Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	return export.New(export.Config{
		OutputDir: dir,
		Now:       fixedClock(),
		Logger:    zerolog.Nop(),
	}), dir
}

func TestExport_WritesAllArtifacts(t *testing.T) {
	exporter, dir := newExporter(t)

	artifacts, err := exporter.Export(context.Background(), testResult())
	require.NoError(t, err)

	require.Len(t, artifacts, 4)
	assert.Equal(t, export.DumpFilename, artifacts[0].Name)
	assert.Equal(t, export.StationsFilename, artifacts[1].Name)
	assert.Equal(t, export.SensorsFilename, artifacts[2].Name)
	assert.Equal(t, export.SummaryFilename, artifacts[3].Name)

	for _, a := range artifacts {
		assert.Equal(t, filepath.Join(dir, a.Name), a.Path)
		info, err := os.Stat(a.Path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), a.Bytes)
		assert.Positive(t, a.Bytes)
	}
}

func TestExport_Idempotent(t *testing.T) {
	exporter, dir := newExporter(t)
	result := testResult()

	_, err := exporter.Export(context.Background(), result)
	require.NoError(t, err)

	first := map[string][]byte{}
	for _, name := range []string{export.DumpFilename, export.StationsFilename, export.SensorsFilename, export.SummaryFilename} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		first[name] = data
	}

	_, err = exporter.Export(context.Background(), result)
	require.NoError(t, err)

	for name, want := range first {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, "artifact %s must be byte-identical on re-export", name)
	}
}

func TestExport_DumpContents(t *testing.T) {
	exporter, dir := newExporter(t)

	_, err := exporter.Export(context.Background(), testResult())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, export.DumpFilename))
	require.NoError(t, err)

	var dump struct {
		Metadata struct {
			RunID       string    `json:"run_id"`
			CountryISO  string    `json:"country_iso"`
			GeneratedAt time.Time `json:"generated_at"`
			Aborted     bool      `json:"aborted"`
		} `json:"metadata"`
		Summary  explorer.ExplorationSummary `json:"summary"`
		Stations []*explorer.Station         `json:"stations"`
		Failures []explorer.Failure          `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(data, &dump))

	assert.Equal(t, "run-fixed", dump.Metadata.RunID)
	assert.Equal(t, "SN", dump.Metadata.CountryISO)
	assert.Equal(t, fixedClock()(), dump.Metadata.GeneratedAt)
	assert.False(t, dump.Metadata.Aborted)

	assert.Equal(t, 2, dump.Summary.TotalStations)
	assert.Equal(t, 2, dump.Summary.TotalSensors)
	assert.Equal(t, 1, dump.Summary.UnresolvedParameters)

	require.Len(t, dump.Stations, 2)
	assert.Equal(t, "Dakar-Plateau", dump.Stations[0].Name)
	require.Len(t, dump.Failures, 1)
}

func TestExport_EmptyResultDumpHasEmptySlices(t *testing.T) {
	exporter, dir := newExporter(t)

	result := &explorer.ExplorationResult{RunID: "empty", CountryISO: "SN"}
	_, err := exporter.Export(context.Background(), result)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, export.DumpFilename))
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"stations": []`)
	assert.Contains(t, text, `"failures": []`)
	assert.NotContains(t, text, "null")
}

func TestExport_StationsCSV(t *testing.T) {
	exporter, dir := newExporter(t)

	_, err := exporter.Export(context.Background(), testResult())
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, export.StationsFilename))
	require.Len(t, rows, 3)

	assert.Equal(t, "station_id", rows[0][0])
	assert.Equal(t, "suspect_location", rows[0][len(rows[0])-1])

	dakar := rows[1]
	assert.Equal(t, "1", dakar[0])
	assert.Equal(t, "Dakar-Plateau", dakar[1])
	assert.Equal(t, "14.69", dakar[4])
	assert.Equal(t, "-17.44", dakar[5])
	assert.Equal(t, "2", dakar[10]) // sensor count
	assert.Equal(t, "2023-01-05T00:00:00Z", dakar[11])

	thies := rows[2]
	assert.Equal(t, "2", thies[0])
	assert.Empty(t, thies[4], "missing coordinates render empty, not zero")
	assert.Empty(t, thies[11], "missing timestamps render empty")
}

func TestExport_SensorsCSV(t *testing.T) {
	exporter, dir := newExporter(t)

	_, err := exporter.Export(context.Background(), testResult())
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, export.SensorsFilename))
	require.Len(t, rows, 3)

	resolved := rows[1]
	assert.Equal(t, "11", resolved[0])
	assert.Equal(t, "Dakar-Plateau", resolved[3], "sensor rows carry the station name as join key")
	assert.Equal(t, "14.69", resolved[4])
	assert.Equal(t, "pm25", resolved[6])
	assert.Equal(t, "true", resolved[9])
	assert.Equal(t, explorer.StrategyNameUnits, resolved[10])

	unresolved := rows[2]
	assert.Equal(t, "12", unresolved[0])
	assert.Empty(t, unresolved[6])
	assert.Equal(t, "false", unresolved[9])
}

func TestExport_SummaryReport(t *testing.T) {
	exporter, dir := newExporter(t)

	result := testResult()
	result.Aborted = true
	result.AbortReason = "quota exceeded while exploring sensors"

	_, err := exporter.Export(context.Background(), result)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, export.SummaryFilename))
	require.NoError(t, err)
	report := string(data)

	assert.Contains(t, report, "SYNTHESIS REPORT")
	assert.Contains(t, report, "Status:       PARTIAL (quota exceeded while exploring sensors)")
	assert.Contains(t, report, "Total stations:           2")
	assert.Contains(t, report, "PM2.5 (µg/m³) - 1 sensor(s)")
	assert.Contains(t, report, "[transient] sensors for station 2 (Thies): boom")
	assert.Contains(t, report, "RECOMMENDATIONS FOR DATA COLLECTION")
	assert.True(t, strings.HasSuffix(report, "rollout\n"))
}

func TestExport_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	exporter := export.New(export.Config{OutputDir: dir, Now: fixedClock(), Logger: zerolog.Nop()})

	_, err := exporter.Export(context.Background(), testResult())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, export.DumpFilename))
	require.NoError(t, err)
}

func TestExport_CancelledContext(t *testing.T) {
	exporter, _ := newExporter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exporter.Export(ctx, testResult())
	require.Error(t, err)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

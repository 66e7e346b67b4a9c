// Package export serializes an exploration result into independent output
// artifacts: a structured full dump, flat tabular views, and a readable
// summary report. All artifacts derive from the in-memory result; nothing
// here touches the network.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Edwouard/SenegalAirWatch/internal/explorer"
)

// Fixed artifact names. Re-running an export against the same destination
// overwrites them, keeping the layout stable for downstream jobs.
const (
	DumpFilename       = "exploration_senegal.json"
	StationsFilename   = "stations.csv"
	SensorsFilename    = "sensors.csv"
	SummaryFilename    = "summary.txt"
	timestampPrecision = time.RFC3339
)

// Artifact describes one written output file.
type Artifact struct {
	Name  string
	Path  string
	Bytes int64
}

// Config holds configuration for the exporter.
type Config struct {
	// OutputDir is created if missing.
	OutputDir string

	// Now supplies the generation timestamp; defaults to time.Now. Injected
	// so exports can be byte-identical under test.
	Now func() time.Time

	Logger zerolog.Logger
}

// Exporter writes exploration results to disk.
type Exporter struct {
	outputDir string
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates an exporter.
func New(cfg Config) *Exporter {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "data/exploration"
	}
	return &Exporter{
		outputDir: outputDir,
		now:       now,
		logger:    cfg.Logger,
	}
}

// dump is the on-disk structure of the full JSON artifact.
type dump struct {
	Metadata    dumpMetadata                 `json:"metadata"`
	Summary     explorer.ExplorationSummary  `json:"summary"`
	Stations    []*explorer.Station          `json:"stations"`
	Failures    []explorer.Failure           `json:"failures"`
	Diagnostics explorer.DiagnosticsSummary  `json:"diagnostics"`
}

type dumpMetadata struct {
	RunID       string    `json:"run_id"`
	CountryISO  string    `json:"country_iso"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	GeneratedAt time.Time `json:"generated_at"`
	Aborted     bool      `json:"aborted"`
	AbortReason string    `json:"abort_reason,omitempty"`
}

// Export writes all artifacts for one result. Writes run concurrently; the
// returned artifact order is fixed regardless. Export is idempotent: the
// same result and destination produce identical files apart from the
// generated-at timestamp in the dump metadata.
func (e *Exporter) Export(ctx context.Context, result *explorer.ExplorationResult) ([]Artifact, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	summary := result.Summary()
	generatedAt := e.now().UTC()

	writers := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{DumpFilename, func() ([]byte, error) { return e.renderDump(result, summary, generatedAt) }},
		{StationsFilename, func() ([]byte, error) { return renderStationsCSV(result) }},
		{SensorsFilename, func() ([]byte, error) { return renderSensorsCSV(result) }},
		{SummaryFilename, func() ([]byte, error) { return renderSummary(result, summary, generatedAt), nil }},
	}

	artifacts := make([]Artifact, len(writers))

	g, ctx := errgroup.WithContext(ctx)
	for i, wr := range writers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := wr.render()
			if err != nil {
				return fmt.Errorf("render %s: %w", wr.name, err)
			}
			path := filepath.Join(e.outputDir, wr.name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", wr.name, err)
			}
			artifacts[i] = Artifact{Name: wr.name, Path: path, Bytes: int64(len(data))}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, a := range artifacts {
		e.logger.Info().Str("artifact", a.Name).Int64("bytes", a.Bytes).Msg("artifact written")
	}

	return artifacts, nil
}

func (e *Exporter) renderDump(result *explorer.ExplorationResult, summary explorer.ExplorationSummary, generatedAt time.Time) ([]byte, error) {
	d := dump{
		Metadata: dumpMetadata{
			RunID:       result.RunID,
			CountryISO:  result.CountryISO,
			StartedAt:   result.StartedAt,
			CompletedAt: result.CompletedAt,
			GeneratedAt: generatedAt,
			Aborted:     result.Aborted,
			AbortReason: result.AbortReason,
		},
		Summary:     summary,
		Stations:    result.Stations,
		Failures:    result.Failures,
		Diagnostics: result.Diagnostics,
	}
	if d.Stations == nil {
		d.Stations = []*explorer.Station{}
	}
	if d.Failures == nil {
		d.Failures = []explorer.Failure{}
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// renderStationsCSV writes one row per station in discovery order.
func renderStationsCSV(result *explorer.ExplorationResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"station_id", "name", "locality", "country_code",
		"latitude", "longitude", "owner", "provider",
		"is_mobile", "is_monitor", "sensor_count",
		"first_measurement", "last_measurement", "suspect_location",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, s := range result.Stations {
		row := []string{
			strconv.Itoa(s.ID),
			s.Name,
			s.Locality,
			s.CountryCode,
			formatCoord(s.Latitude, s.HasCoordinates),
			formatCoord(s.Longitude, s.HasCoordinates),
			s.Owner,
			s.Provider,
			strconv.FormatBool(s.IsMobile),
			strconv.FormatBool(s.IsMonitor),
			strconv.Itoa(len(s.Sensors)),
			formatTime(s.FirstMeasurement),
			formatTime(s.LastMeasurement),
			strconv.FormatBool(s.SuspectLocation),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// renderSensorsCSV writes one row per sensor, denormalized with the owning
// station's identity (name + coordinates) so rows are joinable against
// per-station weather extracts.
func renderSensorsCSV(result *explorer.ExplorationResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"sensor_id", "sensor_name", "station_id", "station_name",
		"latitude", "longitude",
		"parameter_code", "parameter_display_name", "parameter_unit",
		"resolved", "strategy",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, station := range result.Stations {
		for _, sensor := range station.Sensors {
			row := []string{
				strconv.Itoa(sensor.ID),
				sensor.Name,
				strconv.Itoa(station.ID),
				station.Name,
				formatCoord(station.Latitude, station.HasCoordinates),
				formatCoord(station.Longitude, station.HasCoordinates),
				sensor.Parameter.Code,
				sensor.Parameter.DisplayName,
				sensor.Parameter.Unit,
				strconv.FormatBool(sensor.Parameter.Resolved),
				sensor.Parameter.Strategy,
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatCoord(v float64, has bool) string {
	if !has {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timestampPrecision)
}

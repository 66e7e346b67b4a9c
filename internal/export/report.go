package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/Edwouard/SenegalAirWatch/internal/explorer"
)

// renderSummary produces the human-readable synthesis report.
func renderSummary(result *explorer.ExplorationResult, summary explorer.ExplorationSummary, generatedAt time.Time) []byte {
	var b strings.Builder

	line := strings.Repeat("=", 70)
	section := strings.Repeat("-", 30)

	fmt.Fprintf(&b, "SENEGAL AIR QUALITY STATION EXPLORATION - SYNTHESIS REPORT\n%s\n\n", line)
	fmt.Fprintf(&b, "Run:          %s\n", result.RunID)
	fmt.Fprintf(&b, "Country:      %s\n", result.CountryISO)
	fmt.Fprintf(&b, "Started:      %s\n", result.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Completed:    %s\n", result.CompletedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Generated:    %s\n", generatedAt.Format(time.RFC3339))
	if result.Aborted {
		fmt.Fprintf(&b, "Status:       PARTIAL (%s)\n", result.AbortReason)
	} else {
		fmt.Fprintf(&b, "Status:       COMPLETE\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "GENERAL STATISTICS\n%s\n", section)
	fmt.Fprintf(&b, "Total stations:           %d\n", summary.TotalStations)
	fmt.Fprintf(&b, "Stations with sensors:    %d\n", summary.StationsWithSensors)
	fmt.Fprintf(&b, "Total sensors:            %d\n", summary.TotalSensors)
	fmt.Fprintf(&b, "Unique parameters:        %d\n", len(summary.UniqueParameters))
	fmt.Fprintf(&b, "Unresolved parameters:    %d\n", summary.UnresolvedParameters)
	fmt.Fprintf(&b, "Recorded failures:        %d\n\n", summary.FailureCount)

	fmt.Fprintf(&b, "GEOGRAPHIC DISTRIBUTION\n%s\n", section)
	for _, lc := range summary.Geographic.ByLocality {
		fmt.Fprintf(&b, "  %s: %d station(s)\n", lc.Locality, lc.Stations)
	}
	fmt.Fprintf(&b, "Geolocated stations: %d (%.2f%%)\n", summary.Geographic.GeolocatedCount, summary.Geographic.GeolocatedPercent)
	if summary.Geographic.SuspectCount > 0 {
		fmt.Fprintf(&b, "Stations outside the Senegal bounding box: %d\n", summary.Geographic.SuspectCount)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "MEASURED PARAMETERS\n%s\n", section)
	for _, p := range summary.UniqueParameters {
		fmt.Fprintf(&b, "  %s (%s) - %d sensor(s)\n", p.DisplayName, p.Unit, p.SensorCount)
	}
	b.WriteString("\n")

	if summary.Timespan != nil {
		fmt.Fprintf(&b, "DATA TIMESPAN\n%s\n", section)
		fmt.Fprintf(&b, "First measurement: %s\n", summary.Timespan.First.Format(time.RFC3339))
		fmt.Fprintf(&b, "Last measurement:  %s\n", summary.Timespan.Last.Format(time.RFC3339))
		fmt.Fprintf(&b, "Stations with timestamps: %d\n\n", summary.Timespan.StationsWithTS)
	}

	if len(result.Failures) > 0 {
		fmt.Fprintf(&b, "FAILURES\n%s\n", section)
		for _, f := range result.Failures {
			if f.StationID != 0 {
				fmt.Fprintf(&b, "  [%s] %s for station %d (%s): %s\n", f.Kind, f.Resource, f.StationID, f.StationName, f.Message)
			} else {
				fmt.Fprintf(&b, "  [%s] %s: %s\n", f.Kind, f.Resource, f.Message)
			}
		}
		b.WriteString("\n")
	}

	diag := result.Diagnostics
	fmt.Fprintf(&b, "SCHEMA DIAGNOSTICS\n%s\n", section)
	fmt.Fprintf(&b, "Unresolved extraction paths hit: %d\n", diag.Unresolved)
	for _, kind := range []explorer.RecordKind{explorer.KindStation, explorer.KindSensor, explorer.KindParameter} {
		shapes := diag.Shapes[kind]
		if len(shapes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Observed %s shapes:\n", kind)
		for _, sc := range shapes {
			fmt.Fprintf(&b, "  %dx {%s}\n", sc.Count, sc.Fields)
		}
	}
	if len(diag.DuplicateStations) > 0 {
		fmt.Fprintf(&b, "Duplicate station ids across pages: %v\n", diag.DuplicateStations)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "RECOMMENDATIONS FOR DATA COLLECTION\n%s\n", strings.Repeat("-", 50))
	b.WriteString("1. Prioritize the PM1, PM2.5 and PM10 particulate parameters\n")
	b.WriteString("2. Join weather extracts by station name or coordinate pair\n")
	b.WriteString("3. Choose the collection frequency according to intended use\n")
	b.WriteString("4. Plan for gaps: several stations report intermittently\n")
	b.WriteString("5. Trial the collection against one station before a full rollout\n")

	return []byte(b.String())
}

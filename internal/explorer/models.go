// Package explorer implements the station exploration pipeline: it walks the
// OpenAQ location/sensor hierarchy for a country, normalizes inconsistent
// parameter payloads, and aggregates everything into an immutable result.
package explorer

import (
	"time"

	"github.com/google/uuid"
)

// Senegal bounding box. Stations reported outside of it are flagged as
// suspect but kept in the result.
const (
	senegalMinLat = 12.0
	senegalMaxLat = 17.0
	senegalMinLon = -17.8
	senegalMaxLon = -11.0
)

// Station is a fixed physical monitoring site discovered during a traversal.
type Station struct {
	ID          int    `json:"station_id"`
	Name        string `json:"name"`
	Locality    string `json:"locality,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	CountryName string `json:"country_name,omitempty"`

	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	HasCoordinates bool    `json:"has_coordinates"`

	Owner       string   `json:"owner,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	IsMobile    bool     `json:"is_mobile"`
	IsMonitor   bool     `json:"is_monitor"`
	Instruments []string `json:"instruments,omitempty"`

	FirstMeasurement *time.Time `json:"first_measurement,omitempty"`
	LastMeasurement  *time.Time `json:"last_measurement,omitempty"`

	// SuspectLocation is set when the reported coordinates fall outside the
	// Senegal bounding box. The station is kept either way.
	SuspectLocation bool `json:"suspect_location"`

	Sensors []*Sensor `json:"sensors"`
}

// InBoundingBox reports whether the coordinates fall inside Senegal.
func InBoundingBox(lat, lon float64) bool {
	return lat >= senegalMinLat && lat <= senegalMaxLat &&
		lon >= senegalMinLon && lon <= senegalMaxLon
}

// Sensor is a single measurement channel hosted at a station.
type Sensor struct {
	ID        int    `json:"sensor_id"`
	Name      string `json:"name,omitempty"`
	StationID int    `json:"station_id"`

	// RawParameter is the parameter payload exactly as decoded from the API.
	RawParameter any `json:"-"`

	Parameter ParameterInfo `json:"parameter"`

	FirstMeasurement *time.Time `json:"first_measurement,omitempty"`
	LastMeasurement  *time.Time `json:"last_measurement,omitempty"`
}

// ParameterInfo is the normalized result of parameter extraction. A field is
// either confidently resolved or the whole descriptor is marked unresolved;
// values are never guessed.
type ParameterInfo struct {
	Code        string `json:"code,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Unit        string `json:"unit,omitempty"`

	// Resolved distinguishes a successful extraction from the explicit
	// "could not determine" state.
	Resolved bool `json:"resolved"`

	// Strategy names the extraction strategy that produced this descriptor.
	// Empty when unresolved.
	Strategy string `json:"strategy,omitempty"`

	// Raw carries the original payload for later inspection. Only populated
	// in the unresolved state.
	Raw any `json:"raw,omitempty"`
}

// FailureKind classifies a recorded per-resource failure.
type FailureKind string

const (
	// FailureTransient covers network errors and 5xx responses that survived
	// the retry budget.
	FailureTransient FailureKind = "transient"

	// FailurePermanent covers 4xx responses, which are never retried.
	FailurePermanent FailureKind = "permanent"

	// FailureQuota marks quota exhaustion (429). Quota failures abort the
	// remainder of the run.
	FailureQuota FailureKind = "quota"

	// FailureCancelled marks work skipped because the run was cancelled.
	FailureCancelled FailureKind = "cancelled"
)

// Failure records a single per-resource failure during a traversal.
type Failure struct {
	Kind     FailureKind `json:"kind"`
	Resource string      `json:"resource"` // "locations" or "sensors"

	// StationID is zero for top-level location listing failures.
	StationID   int    `json:"station_id,omitempty"`
	StationName string `json:"station_name,omitempty"`
	Message     string `json:"message"`
}

// ExplorationResult is the root aggregate of one traversal run. Stations are
// kept in discovery order. The result is immutable once export begins; a new
// run always produces a new result.
type ExplorationResult struct {
	RunID      string `json:"run_id"`
	CountryISO string `json:"country_iso"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Stations []*Station `json:"stations"`
	Failures []Failure  `json:"failures"`

	// Aborted is set when the run stopped early (quota exhaustion or
	// cancellation) and the result is partial.
	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`

	Diagnostics DiagnosticsSummary `json:"diagnostics"`
}

// NewExplorationResult creates an empty result for a fresh run.
func NewExplorationResult(countryISO string) *ExplorationResult {
	return &ExplorationResult{
		RunID:      uuid.NewString(),
		CountryISO: countryISO,
		StartedAt:  time.Now().UTC(),
	}
}

// TotalSensors counts sensors across all stations.
func (r *ExplorationResult) TotalSensors() int {
	total := 0
	for _, s := range r.Stations {
		total += len(s.Sensors)
	}
	return total
}

// StationByID returns the station with the given id, or nil.
func (r *ExplorationResult) StationByID(id int) *Station {
	for _, s := range r.Stations {
		if s.ID == id {
			return s
		}
	}
	return nil
}

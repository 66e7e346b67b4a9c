package explorer

import (
	"math"
	"sort"
	"time"
)

// ParameterUsage describes one unique parameter measured across the run.
type ParameterUsage struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Unit        string `json:"unit"`
	SensorCount int    `json:"sensor_count"`
}

// LocalityCount is the number of stations in one locality.
type LocalityCount struct {
	Locality string `json:"locality"`
	Stations int    `json:"stations"`
}

// GeographicSummary describes the spatial spread of the discovered stations.
type GeographicSummary struct {
	ByLocality        []LocalityCount `json:"by_locality,omitempty"`
	GeolocatedCount   int             `json:"geolocated_stations"`
	GeolocatedPercent float64         `json:"geolocated_percent"`
	SuspectCount      int             `json:"suspect_stations"`
}

// TimespanSummary describes the measurement period covered by the stations.
type TimespanSummary struct {
	First          time.Time `json:"first_measurement"`
	Last           time.Time `json:"last_measurement"`
	StationsWithTS int       `json:"stations_with_timestamps"`
}

// ExplorationSummary is the aggregate view derived from an immutable result.
type ExplorationSummary struct {
	TotalStations        int               `json:"total_stations"`
	StationsWithSensors  int               `json:"stations_with_sensors"`
	TotalSensors         int               `json:"total_sensors"`
	UnresolvedParameters int               `json:"unresolved_parameters"`
	FailureCount         int               `json:"failure_count"`
	UniqueParameters     []ParameterUsage  `json:"unique_parameters,omitempty"`
	Geographic           GeographicSummary `json:"geographic"`
	Timespan             *TimespanSummary  `json:"timespan,omitempty"`
}

// Summary computes the run summary. It is a pure function of the result and
// deterministic: slices are ordered by code, locality, or id.
func (r *ExplorationResult) Summary() ExplorationSummary {
	s := ExplorationSummary{
		TotalStations: len(r.Stations),
		FailureCount:  len(r.Failures),
	}

	params := make(map[string]*ParameterUsage)
	localities := make(map[string]int)
	var first, last time.Time
	stationsWithTS := 0

	for _, station := range r.Stations {
		if len(station.Sensors) > 0 {
			s.StationsWithSensors++
		}
		s.TotalSensors += len(station.Sensors)

		locality := station.Locality
		if locality == "" {
			locality = "unspecified"
		}
		localities[locality]++

		if station.HasCoordinates {
			s.Geographic.GeolocatedCount++
		}
		if station.SuspectLocation {
			s.Geographic.SuspectCount++
		}

		if station.FirstMeasurement != nil || station.LastMeasurement != nil {
			stationsWithTS++
		}
		if t := station.FirstMeasurement; t != nil && (first.IsZero() || t.Before(first)) {
			first = *t
		}
		if t := station.LastMeasurement; t != nil && t.After(last) {
			last = *t
		}

		for _, sensor := range station.Sensors {
			if !sensor.Parameter.Resolved {
				s.UnresolvedParameters++
				continue
			}
			usage, ok := params[sensor.Parameter.Code]
			if !ok {
				usage = &ParameterUsage{
					Code:        sensor.Parameter.Code,
					DisplayName: sensor.Parameter.DisplayName,
					Unit:        sensor.Parameter.Unit,
				}
				params[sensor.Parameter.Code] = usage
			}
			usage.SensorCount++
		}
	}

	for _, usage := range params {
		s.UniqueParameters = append(s.UniqueParameters, *usage)
	}
	sort.Slice(s.UniqueParameters, func(i, j int) bool {
		return s.UniqueParameters[i].Code < s.UniqueParameters[j].Code
	})

	for locality, n := range localities {
		s.Geographic.ByLocality = append(s.Geographic.ByLocality, LocalityCount{Locality: locality, Stations: n})
	}
	sort.Slice(s.Geographic.ByLocality, func(i, j int) bool {
		return s.Geographic.ByLocality[i].Locality < s.Geographic.ByLocality[j].Locality
	})

	if s.TotalStations > 0 {
		pct := float64(s.Geographic.GeolocatedCount) / float64(s.TotalStations) * 100
		s.Geographic.GeolocatedPercent = math.Round(pct*100) / 100
	}

	if !first.IsZero() || !last.IsZero() {
		s.Timespan = &TimespanSummary{First: first, Last: last, StationsWithTS: stationsWithTS}
	}

	return s
}

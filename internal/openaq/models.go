package openaq

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Parameter is the documented shape of a sensor parameter in the v3 API.
// In practice sensor payloads do not always match it, which is why the
// explorer keeps the raw payload around as well.
type Parameter struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Units       string `json:"units"`
	DisplayName string `json:"displayName"`
}

// Country identifies the country a location belongs to.
type Country struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NamedRef is a minimal reference carrying only a display name. Owners,
// providers and instruments all use it.
type NamedRef struct {
	Name string `json:"name"`
}

// Location is one monitoring site as returned by /v3/locations.
type Location struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Locality string `json:"locality"`

	Country     Country      `json:"country"`
	Coordinates *Coordinates `json:"coordinates"`

	Owner       *NamedRef  `json:"owner"`
	Provider    *NamedRef  `json:"provider"`
	Instruments []NamedRef `json:"instruments"`

	IsMobile  bool `json:"isMobile"`
	IsMonitor bool `json:"isMonitor"`

	DatetimeFirst *Datetime `json:"datetimeFirst"`
	DatetimeLast  *Datetime `json:"datetimeLast"`

	// Fields lists the top-level field names actually present in the raw
	// record, for schema-drift diagnostics.
	Fields []string `json:"-"`
}

// Sensor is one measurement channel as returned by /v3/locations/{id}/sensors.
// The parameter payload is kept raw; its shape is not trusted.
type Sensor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	Parameter json.RawMessage `json:"parameter"`

	DatetimeFirst *Datetime `json:"datetimeFirst"`
	DatetimeLast  *Datetime `json:"datetimeLast"`

	Fields []string `json:"-"`
}

// Datetime is the {utc, local} timestamp pair the API uses.
type Datetime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

// Time parses the UTC timestamp, returning nil when absent or invalid.
func (d *Datetime) Time() *time.Time {
	if d == nil || d.UTC == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, d.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// pageMeta is the pagination envelope. The found field is documented as a
// number but the API sometimes returns a string such as ">1000", so it is
// decoded leniently.
type pageMeta struct {
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Found json.RawMessage `json:"found"`
}

// foundCount returns the total and whether it is exact. A ">" prefix means
// the API reported a lower bound rather than a count.
func (m pageMeta) foundCount() (int, bool) {
	raw := strings.Trim(string(m.Found), `"`)
	if raw == "" {
		return 0, false
	}
	exact := !strings.HasPrefix(raw, ">")
	n, err := strconv.Atoi(strings.TrimPrefix(raw, ">"))
	if err != nil {
		return 0, false
	}
	return n, exact
}

// fieldNames returns the sorted top-level field names of a raw JSON object.
func fieldNames(raw json.RawMessage) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

package explorer

import (
	"sort"
	"strings"
	"sync"
)

// RecordKind identifies the kind of record a shape observation belongs to.
type RecordKind string

const (
	KindStation   RecordKind = "station"
	KindSensor    RecordKind = "sensor"
	KindParameter RecordKind = "parameter"
)

// Recorder accumulates the raw shapes of records seen during a traversal so
// that drift between the documented and actual API schema is visible. It is
// write-only during traversal and safe for concurrent use; Summary is read
// once traversal completes.
type Recorder struct {
	mu         sync.Mutex
	shapes     map[RecordKind]map[string]int
	strategies map[string]int
	unresolved int
	duplicates []int
}

// NewRecorder creates an empty diagnostics recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		shapes:     make(map[RecordKind]map[string]int),
		strategies: make(map[string]int),
	}
}

// RecordShape records the set of field names actually observed on a record.
func (r *Recorder) RecordShape(kind RecordKind, fields []string) {
	if len(fields) == 0 {
		return
	}
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	key := strings.Join(sorted, ",")

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shapes[kind] == nil {
		r.shapes[kind] = make(map[string]int)
	}
	r.shapes[kind][key]++
}

// RecordStrategy records which extraction strategy resolved a parameter.
func (r *Recorder) RecordStrategy(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name]++
}

// RecordUnresolved records a parameter payload no strategy could resolve.
func (r *Recorder) RecordUnresolved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unresolved++
}

// RecordDuplicate records a station id seen more than once across pages.
func (r *Recorder) RecordDuplicate(stationID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicates = append(r.duplicates, stationID)
}

// ShapeCount is one distinct field-name combination and how often it was seen.
type ShapeCount struct {
	Fields string `json:"fields"`
	Count  int    `json:"count"`
}

// DiagnosticsSummary is the read-only view of a Recorder after traversal.
type DiagnosticsSummary struct {
	// Shapes maps record kind to the distinct field-name combinations seen.
	Shapes map[RecordKind][]ShapeCount `json:"shapes,omitempty"`

	// Strategies counts how often each extraction strategy won.
	Strategies map[string]int `json:"strategies,omitempty"`

	// Unresolved counts how often the unresolved extraction path was hit.
	Unresolved int `json:"unresolved"`

	// DuplicateStations lists station ids that appeared on more than one page.
	DuplicateStations []int `json:"duplicate_stations,omitempty"`
}

// Summary returns a deterministic snapshot of everything recorded so far.
func (r *Recorder) Summary() DiagnosticsSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := DiagnosticsSummary{Unresolved: r.unresolved}

	if len(r.shapes) > 0 {
		s.Shapes = make(map[RecordKind][]ShapeCount, len(r.shapes))
		for kind, counts := range r.shapes {
			list := make([]ShapeCount, 0, len(counts))
			for fields, n := range counts {
				list = append(list, ShapeCount{Fields: fields, Count: n})
			}
			sort.Slice(list, func(i, j int) bool { return list[i].Fields < list[j].Fields })
			s.Shapes[kind] = list
		}
	}

	if len(r.strategies) > 0 {
		s.Strategies = make(map[string]int, len(r.strategies))
		for name, n := range r.strategies {
			s.Strategies[name] = n
		}
	}

	if len(r.duplicates) > 0 {
		s.DuplicateStations = append([]int(nil), r.duplicates...)
		sort.Ints(s.DuplicateStations)
	}

	return s
}

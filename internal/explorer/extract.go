package explorer

import (
	"github.com/Edwouard/SenegalAirWatch/internal/openaq"
)

// Strategy names, recorded in diagnostics and on resolved descriptors.
const (
	StrategyNameUnits  = "map:name+units"
	StrategyCodeUnits  = "map:code+units"
	StrategyFlatParam  = "map:parameter+unit"
	StrategyTypedParam = "typed:openaq.Parameter"
)

// extractStrategy attempts to read a normalized parameter descriptor out of
// one particular payload shape. It reports false when the payload does not
// match the shape; it must never guess partial values.
type extractStrategy interface {
	Name() string
	Extract(raw any) (ParameterInfo, bool)
}

// Extractor normalizes raw sensor parameter payloads. The strategies are
// ordered by how often each shape is seen in practice, not by declaration
// convenience: sensor payloads from the live API carry name/units despite
// the documentation describing code/units. Reordering changes the hit rate,
// not correctness.
type Extractor struct {
	strategies []extractStrategy
	recorder   *Recorder
}

// NewExtractor creates an extractor reporting to the given recorder.
func NewExtractor(recorder *Recorder) *Extractor {
	if recorder == nil {
		recorder = NewRecorder()
	}
	return &Extractor{
		strategies: []extractStrategy{
			nameUnitsStrategy{},
			codeUnitsStrategy{},
			flatParamStrategy{},
			typedParamStrategy{},
		},
		recorder: recorder,
	}
}

// Extract returns a normalized descriptor for a raw parameter payload of
// unknown shape. When no strategy matches, the descriptor is explicitly
// unresolved and carries the original payload. Extract never panics and
// never fabricates a code or unit.
func (e *Extractor) Extract(raw any) ParameterInfo {
	if m, ok := raw.(map[string]any); ok {
		e.recorder.RecordShape(KindParameter, mapKeys(m))
	}

	for _, s := range e.strategies {
		if info, ok := s.Extract(raw); ok {
			info.Resolved = true
			info.Strategy = s.Name()
			e.recorder.RecordStrategy(s.Name())
			return info
		}
	}

	e.recorder.RecordUnresolved()
	return ParameterInfo{Resolved: false, Raw: raw}
}

// nameUnitsStrategy matches the shape the v3 API actually returns for
// sensor parameters: {"id": 2, "name": "pm25", "units": "µg/m³",
// "displayName": "PM2.5"}.
type nameUnitsStrategy struct{}

func (nameUnitsStrategy) Name() string { return StrategyNameUnits }

func (nameUnitsStrategy) Extract(raw any) (ParameterInfo, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return ParameterInfo{}, false
	}
	name, ok := stringField(m, "name")
	if !ok {
		return ParameterInfo{}, false
	}
	units, ok := stringField(m, "units")
	if !ok {
		return ParameterInfo{}, false
	}

	display, ok := stringField(m, "displayName")
	if !ok {
		// The original data set falls back to the code when no display name
		// is published; this is a rename, not a fabricated value.
		display = name
	}

	return ParameterInfo{Code: name, DisplayName: display, Unit: units}, true
}

// codeUnitsStrategy matches the documented shape {"code": ..., "name": ...,
// "units": ...} where code is the machine identifier and name the label.
type codeUnitsStrategy struct{}

func (codeUnitsStrategy) Name() string { return StrategyCodeUnits }

func (codeUnitsStrategy) Extract(raw any) (ParameterInfo, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return ParameterInfo{}, false
	}
	code, ok := stringField(m, "code")
	if !ok {
		return ParameterInfo{}, false
	}
	units, ok := stringField(m, "units")
	if !ok {
		return ParameterInfo{}, false
	}

	display, ok := stringField(m, "name")
	if !ok {
		display = code
	}

	return ParameterInfo{Code: code, DisplayName: display, Unit: units}, true
}

// flatParamStrategy matches the legacy flattened shape {"parameter": "pm25",
// "unit": "µg/m³"} seen on older sensor records.
type flatParamStrategy struct{}

func (flatParamStrategy) Name() string { return StrategyFlatParam }

func (flatParamStrategy) Extract(raw any) (ParameterInfo, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return ParameterInfo{}, false
	}
	code, ok := stringField(m, "parameter")
	if !ok {
		return ParameterInfo{}, false
	}
	unit, ok := stringField(m, "unit")
	if !ok {
		return ParameterInfo{}, false
	}

	return ParameterInfo{Code: code, DisplayName: code, Unit: unit}, true
}

// typedParamStrategy matches payloads already decoded into the documented
// openaq.Parameter struct.
type typedParamStrategy struct{}

func (typedParamStrategy) Name() string { return StrategyTypedParam }

func (typedParamStrategy) Extract(raw any) (ParameterInfo, bool) {
	var p openaq.Parameter
	switch v := raw.(type) {
	case openaq.Parameter:
		p = v
	case *openaq.Parameter:
		if v == nil {
			return ParameterInfo{}, false
		}
		p = *v
	default:
		return ParameterInfo{}, false
	}

	if p.Name == "" || p.Units == "" {
		return ParameterInfo{}, false
	}

	display := p.DisplayName
	if display == "" {
		display = p.Name
	}

	return ParameterInfo{Code: p.Name, DisplayName: display, Unit: p.Units}, true
}

// stringField reads a non-empty string value from a decoded JSON object.
func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

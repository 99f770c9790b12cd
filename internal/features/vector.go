package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Observation is one submission of raw fields: numeric fields and selected labels.
type Observation struct {
	Numbers map[string]float64 `json:"numbers"`
	Labels  map[string]string  `json:"labels"`
}

// NewObservation returns an empty Observation ready for Set calls.
func NewObservation() Observation {
	return Observation{
		Numbers: make(map[string]float64),
		Labels:  make(map[string]string),
	}
}

// SetNumber records a numeric field.
func (o Observation) SetNumber(field string, v float64) Observation {
	o.Numbers[field] = v
	return o
}

// SetLabel records a categorical field.
func (o Observation) SetLabel(field, label string) Observation {
	o.Labels[field] = label
	return o
}

// Value returns the raw value of field, preferring the label form.
func (o Observation) Value(field string) (any, bool) {
	if l, ok := o.Labels[field]; ok {
		return l, true
	}
	if n, ok := o.Numbers[field]; ok {
		return n, true
	}
	return nil, false
}

// Fields returns every field name present, sorted.
func (o Observation) Fields() []string {
	names := make([]string, 0, len(o.Numbers)+len(o.Labels))
	for k := range o.Numbers {
		names = append(names, k)
	}
	for k := range o.Labels {
		if _, dup := o.Numbers[k]; !dup {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// ObservationFromMap splits a flat field map, as decoded from JSON, into
// numbers and labels. Null fields are skipped; other types are rejected.
func ObservationFromMap(m map[string]any) (Observation, error) {
	o := NewObservation()
	for k, v := range m {
		switch x := v.(type) {
		case nil:
		case string:
			o.Labels[k] = x
		case float64:
			o.Numbers[k] = x
		case float32:
			o.Numbers[k] = float64(x)
		case int:
			o.Numbers[k] = float64(x)
		case int64:
			o.Numbers[k] = float64(x)
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return Observation{}, fmt.Errorf("field %q: %w", k, err)
			}
			o.Numbers[k] = f
		default:
			return Observation{}, fmt.Errorf("field %q: unsupported value type %T", k, v)
		}
	}
	return o, nil
}

// UnmarshalJSON accepts either the {"numbers":..,"labels":..} form or a flat
// field object such as {"kph": 201.5, "circuit": "Sebring"}.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	_, hasNumbers := flat["numbers"]
	_, hasLabels := flat["labels"]
	wrapped := 0
	if hasNumbers {
		wrapped++
	}
	if hasLabels {
		wrapped++
	}
	if wrapped > 0 && wrapped == len(flat) {
		type plain Observation
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*o = Observation(p)
		if o.Numbers == nil {
			o.Numbers = make(map[string]float64)
		}
		if o.Labels == nil {
			o.Labels = make(map[string]string)
		}
		return nil
	}
	parsed, err := ObservationFromMap(flat)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Vector is an encoded feature record whose columns follow a model schema
// exactly. Models read it positionally.
type Vector struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

// Len returns the number of columns.
func (v Vector) Len() int { return len(v.Columns) }

// Get returns the value of column name.
func (v Vector) Get(name string) (float64, bool) {
	for i, c := range v.Columns {
		if c == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Map returns the vector as a column -> value map.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Columns))
	for i, c := range v.Columns {
		m[c] = v.Values[i]
	}
	return m
}

// Validate rejects NaN and infinite values.
func (v Vector) Validate() error {
	for i, x := range v.Values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("feature %q is %v", v.Columns[i], x)
		}
	}
	return nil
}

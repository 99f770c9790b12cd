package features

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// MinMaxArtifact is the JSON export of a fitted min-max scaler.
type MinMaxArtifact struct {
	FeatureNames []string   `json:"feature_names"`
	DataMin      []float64  `json:"data_min"`
	DataMax      []float64  `json:"data_max"`
	FeatureRange [2]float64 `json:"feature_range"`
}

// MinMaxScaler rescales each column to FeatureRange using the fitted bounds.
// Values outside the fitted bounds are not clipped.
type MinMaxScaler struct {
	columns []string
	scale   []float64
	min     []float64
}

// NewMinMaxScaler derives scale and offset per column. A zero data range gets
// a scale of 1, matching how the scaler was fitted.
func NewMinMaxScaler(a MinMaxArtifact) (*MinMaxScaler, error) {
	n := len(a.FeatureNames)
	if n == 0 || len(a.DataMin) != n || len(a.DataMax) != n {
		return nil, fmt.Errorf("%w: scaler has %d names, %d mins, %d maxes",
			ErrInvalidArtifact, n, len(a.DataMin), len(a.DataMax))
	}
	lo, hi := a.FeatureRange[0], a.FeatureRange[1]
	if lo == 0 && hi == 0 {
		hi = 1
	}
	if lo >= hi {
		return nil, fmt.Errorf("%w: scaler feature range [%g, %g]", ErrInvalidArtifact, lo, hi)
	}

	s := &MinMaxScaler{
		columns: append([]string(nil), a.FeatureNames...),
		scale:   make([]float64, n),
		min:     make([]float64, n),
	}
	for i := 0; i < n; i++ {
		rng := a.DataMax[i] - a.DataMin[i]
		if rng == 0 {
			rng = 1
		}
		s.scale[i] = (hi - lo) / rng
		s.min[i] = lo - a.DataMin[i]*s.scale[i]
	}
	return s, nil
}

// LoadMinMaxScaler reads a MinMaxArtifact from a JSON file.
func LoadMinMaxScaler(path string) (*MinMaxScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler %s: %w", path, err)
	}
	var a MinMaxArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse scaler %s: %v", ErrInvalidArtifact, path, err)
	}
	s, err := NewMinMaxScaler(a)
	if err != nil {
		return nil, fmt.Errorf("load scaler %s: %w", path, err)
	}
	return s, nil
}

// Columns returns the column order the scaler was fitted on.
func (s *MinMaxScaler) Columns() []string {
	return append([]string(nil), s.columns...)
}

// CheckSchema fails unless schema equals the fitted column order.
func (s *MinMaxScaler) CheckSchema(schema []string) error {
	if len(schema) != len(s.columns) {
		return fmt.Errorf("%w: scaler fitted on %d columns, schema has %d", ErrInvalidArtifact, len(s.columns), len(schema))
	}
	for i, c := range schema {
		if s.columns[i] != c {
			return fmt.Errorf("%w: scaler column %d is %q, schema has %q", ErrInvalidArtifact, i, s.columns[i], c)
		}
	}
	return nil
}

// Transform returns a scaled copy of v. Columns must match the fitted order.
func (s *MinMaxScaler) Transform(v Vector) (Vector, error) {
	if err := s.CheckSchema(v.Columns); err != nil {
		return Vector{}, err
	}
	out := Vector{
		Columns: v.Columns,
		Values:  make([]float64, len(v.Values)),
	}
	for i, x := range v.Values {
		y := x*s.scale[i] + s.min[i]
		if math.IsInf(y, 0) {
			return Vector{}, fmt.Errorf("scaled %q overflowed", v.Columns[i])
		}
		out.Values[i] = y
	}
	return out, nil
}

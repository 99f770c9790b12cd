package features

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
)

// TargetEncoder is a learned category -> statistic transform produced at
// training time. Implementations own their policy for keys never seen during
// training; Lookup does not special-case them.
type TargetEncoder interface {
	// Column is the input column name the encoder was fitted on.
	Column() string
	// Transform encodes a table of rows keyed by column name.
	Transform(rows []map[string]any) ([]map[string]float64, error)
}

// Lookup encodes a single key: it builds a one-row table with key under the
// encoder's column, transforms it and extracts the scalar.
func Lookup(enc TargetEncoder, key any) (float64, error) {
	col := enc.Column()
	out, err := enc.Transform([]map[string]any{{col: key}})
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: encoder %q returned %d rows for 1", ErrInvalidArtifact, col, len(out))
	}
	v, ok := out[0][col]
	if !ok {
		return 0, fmt.Errorf("%w: encoder %q output lacks its column", ErrInvalidArtifact, col)
	}
	return v, nil
}

// Policy decides what a MeanEncoder returns for unseen or missing keys. The
// names follow category_encoders' handle_unknown / handle_missing options.
type Policy string

const (
	// PolicyValue returns the prior (global target mean).
	PolicyValue Policy = "value"
	// PolicyReturnNaN returns NaN.
	PolicyReturnNaN Policy = "return_nan"
	// PolicyError fails with ErrUnknownCategory.
	PolicyError Policy = "error"
)

func parsePolicy(s string) (Policy, bool) {
	switch p := Policy(s); p {
	case PolicyValue, PolicyReturnNaN, PolicyError:
		return p, true
	}
	return "", false
}

// MeanEncoderArtifact is the JSON export of a fitted target encoder.
// HandleUnknown is required: the fallback for unseen keys has to match the
// library the encoder was trained with, so it is never defaulted here.
type MeanEncoderArtifact struct {
	Column        string             `json:"column"`
	Mapping       map[string]float64 `json:"mapping"`
	Prior         *float64           `json:"prior,omitempty"`
	HandleUnknown string             `json:"handle_unknown"`
	HandleMissing string             `json:"handle_missing,omitempty"`
}

// MeanEncoder is an in-memory TargetEncoder backed by an exported mapping.
type MeanEncoder struct {
	column        string
	mapping       map[string]float64
	prior         float64
	handleUnknown Policy
	handleMissing Policy
}

// NewMeanEncoder validates an artifact and builds the encoder. Numeric mapping
// keys are re-keyed canonically so "3.0" and 3 address the same category.
func NewMeanEncoder(a MeanEncoderArtifact) (*MeanEncoder, error) {
	if a.Column == "" {
		return nil, fmt.Errorf("%w: encoder column is empty", ErrInvalidArtifact)
	}
	unknown, ok := parsePolicy(a.HandleUnknown)
	if !ok {
		return nil, fmt.Errorf("%w: encoder %q: handle_unknown must be one of value, return_nan, error (got %q)",
			ErrInvalidArtifact, a.Column, a.HandleUnknown)
	}
	missing := PolicyValue
	if a.HandleMissing != "" {
		if missing, ok = parsePolicy(a.HandleMissing); !ok {
			return nil, fmt.Errorf("%w: encoder %q: bad handle_missing %q", ErrInvalidArtifact, a.Column, a.HandleMissing)
		}
	}
	if (unknown == PolicyValue || missing == PolicyValue) && a.Prior == nil {
		return nil, fmt.Errorf("%w: encoder %q: prior is required with the value policy", ErrInvalidArtifact, a.Column)
	}
	if len(a.Mapping) == 0 {
		return nil, fmt.Errorf("%w: encoder %q has an empty mapping", ErrInvalidArtifact, a.Column)
	}

	e := &MeanEncoder{
		column:        a.Column,
		mapping:       make(map[string]float64, len(a.Mapping)),
		handleUnknown: unknown,
		handleMissing: missing,
	}
	if a.Prior != nil {
		e.prior = *a.Prior
	}
	for k, v := range a.Mapping {
		ck := canonicalKey(k)
		if prev, dup := e.mapping[ck]; dup && prev != v {
			return nil, fmt.Errorf("%w: encoder %q: keys collapse to %q with different values", ErrInvalidArtifact, a.Column, ck)
		}
		e.mapping[ck] = v
	}
	return e, nil
}

// LoadMeanEncoder reads a MeanEncoderArtifact from a JSON file.
func LoadMeanEncoder(path string) (*MeanEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read encoder %s: %w", path, err)
	}
	var a MeanEncoderArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse encoder %s: %v", ErrInvalidArtifact, path, err)
	}
	e, err := NewMeanEncoder(a)
	if err != nil {
		return nil, fmt.Errorf("load encoder %s: %w", path, err)
	}
	return e, nil
}

// Column implements TargetEncoder.
func (e *MeanEncoder) Column() string { return e.column }

// Transform implements TargetEncoder.
func (e *MeanEncoder) Transform(rows []map[string]any) ([]map[string]float64, error) {
	out := make([]map[string]float64, len(rows))
	for i, row := range rows {
		v, err := e.encode(row[e.column])
		if err != nil {
			return nil, err
		}
		out[i] = map[string]float64{e.column: v}
	}
	return out, nil
}

func (e *MeanEncoder) encode(raw any) (float64, error) {
	key, present := FormatKey(raw)
	if !present {
		return e.apply(e.handleMissing, "<missing>")
	}
	key = canonicalKey(key)
	if v, ok := e.mapping[key]; ok {
		return v, nil
	}
	return e.apply(e.handleUnknown, key)
}

func (e *MeanEncoder) apply(p Policy, key string) (float64, error) {
	switch p {
	case PolicyValue:
		return e.prior, nil
	case PolicyReturnNaN:
		return math.NaN(), nil
	default:
		return 0, fmt.Errorf("%w: %q for encoder %q", ErrUnknownCategory, key, e.column)
	}
}

// FormatKey renders a raw categorical value as a mapping key. It reports
// false for nil and NaN, which encoders treat as missing.
func FormatKey(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return FormatKey(float64(x))
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return fmt.Sprint(x), true
	}
}

func canonicalKey(k string) string {
	if f, err := strconv.ParseFloat(k, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return k
}

package features

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestMeanEncoder_Lookup(t *testing.T) {
	enc, err := NewMeanEncoder(MeanEncoderArtifact{
		Column:        "manufacturer",
		Mapping:       map[string]float64{"porsche": 221.4, "toyota": 205.9},
		Prior:         ptr(230.0),
		HandleUnknown: "value",
	})
	require.NoError(t, err)
	assert.Equal(t, "manufacturer", enc.Column())

	v, err := Lookup(enc, "toyota")
	require.NoError(t, err)
	assert.Equal(t, 205.9, v)

	// Unseen keys fall back to the prior under the value policy.
	v, err = Lookup(enc, "alpine")
	require.NoError(t, err)
	assert.Equal(t, 230.0, v)

	// Missing keys use handle_missing, which defaults to value.
	v, err = Lookup(enc, nil)
	require.NoError(t, err)
	assert.Equal(t, 230.0, v)
}

func TestMeanEncoder_NumericKeys(t *testing.T) {
	enc, err := NewMeanEncoder(MeanEncoderArtifact{
		Column:        "team_no",
		Mapping:       map[string]float64{"1": 0.5, "3.0": 0.75, "2.5": 0.1},
		HandleUnknown: "error",
		HandleMissing: "error",
	})
	require.NoError(t, err)

	testCases := []struct {
		key  any
		want float64
	}{
		{1.0, 0.5},
		{3.0, 0.75},
		{3, 0.75},
		{"3", 0.75},
		{"03", 0.75},
		{2.5, 0.1},
	}
	for _, tc := range testCases {
		v, err := Lookup(enc, tc.key)
		require.NoError(t, err, "key %v", tc.key)
		assert.Equal(t, tc.want, v, "key %v", tc.key)
	}

	_, err = Lookup(enc, 7.0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	_, err = Lookup(enc, math.NaN())
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}

func TestMeanEncoder_ReturnNaN(t *testing.T) {
	enc, err := NewMeanEncoder(MeanEncoderArtifact{
		Column:        "team",
		Mapping:       map[string]float64{"1": 0.5},
		Prior:         ptr(0.4),
		HandleUnknown: "return_nan",
	})
	require.NoError(t, err)

	v, err := Lookup(enc, 9.0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestNewMeanEncoder_Invalid(t *testing.T) {
	testCases := []struct {
		name     string
		artifact MeanEncoderArtifact
	}{
		{"no column", MeanEncoderArtifact{Mapping: map[string]float64{"a": 1}, Prior: ptr(1), HandleUnknown: "value"}},
		{"undeclared unknown policy", MeanEncoderArtifact{Column: "c", Mapping: map[string]float64{"a": 1}, Prior: ptr(1)}},
		{"bad unknown policy", MeanEncoderArtifact{Column: "c", Mapping: map[string]float64{"a": 1}, Prior: ptr(1), HandleUnknown: "zero"}},
		{"bad missing policy", MeanEncoderArtifact{Column: "c", Mapping: map[string]float64{"a": 1}, Prior: ptr(1), HandleUnknown: "value", HandleMissing: "drop"}},
		{"value policy without prior", MeanEncoderArtifact{Column: "c", Mapping: map[string]float64{"a": 1}, HandleUnknown: "value"}},
		{"empty mapping", MeanEncoderArtifact{Column: "c", Prior: ptr(1), HandleUnknown: "value"}},
		{"conflicting numeric keys", MeanEncoderArtifact{Column: "c", Mapping: map[string]float64{"3": 1, "3.0": 2}, HandleUnknown: "error", HandleMissing: "error"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMeanEncoder(tc.artifact)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArtifact))
		})
	}
}

func TestLoadMeanEncoder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manufacturer.json")
	content := `{"column":"manufacturer","mapping":{"audi":1.5},"prior":2.0,"handle_unknown":"value"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	enc, err := LoadMeanEncoder(path)
	require.NoError(t, err)
	v, err := Lookup(enc, "audi")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	_, err = LoadMeanEncoder(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = LoadMeanEncoder(bad)
	assert.True(t, errors.Is(err, ErrInvalidArtifact))
}

type shortEncoder struct{}

func (shortEncoder) Column() string { return "x" }
func (shortEncoder) Transform([]map[string]any) ([]map[string]float64, error) {
	return nil, nil
}

func TestLookup_RejectsMalformedOutput(t *testing.T) {
	_, err := Lookup(shortEncoder{}, "a")
	assert.True(t, errors.Is(err, ErrInvalidArtifact))
}

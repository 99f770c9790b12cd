package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"race-predictor/internal/features"
)

// InferenceRequest is the body sent to both backends: one row per vector,
// columns in schema order so DataFrame-based pipelines see the right names.
type InferenceRequest struct {
	Model   string      `json:"model,omitempty"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// InferenceResponse carries one prediction per row. Regressors answer with
// numbers, classifiers with labels or numeric class ids.
type InferenceResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
	Error       string            `json:"error,omitempty"`
}

func newInferenceRequest(model string, v features.Vector) InferenceRequest {
	return InferenceRequest{
		Model:   model,
		Columns: v.Columns,
		Rows:    [][]float64{v.Values},
	}
}

// decodeOutput turns one raw prediction into a Prediction of the given kind.
func decodeOutput(kind Kind, raw json.RawMessage) (Prediction, error) {
	var num float64
	numErr := json.Unmarshal(raw, &num)

	switch kind {
	case Regression:
		if numErr != nil {
			return Prediction{}, fmt.Errorf("%w: regression output %s is not a number", ErrBadOutput, string(raw))
		}
		if math.IsNaN(num) || math.IsInf(num, 0) {
			return Prediction{}, fmt.Errorf("%w: regression output is %v", ErrBadOutput, num)
		}
		return Prediction{Kind: Regression, Value: num}, nil
	case Classification:
		if numErr == nil {
			return Prediction{Kind: Classification, Value: num, Label: strconv.FormatFloat(num, 'f', -1, 64)}, nil
		}
		var label string
		if err := json.Unmarshal(raw, &label); err != nil || label == "" {
			return Prediction{}, fmt.Errorf("%w: class output %s is neither label nor number", ErrBadOutput, string(raw))
		}
		return Prediction{Kind: Classification, Label: label}, nil
	default:
		return Prediction{}, fmt.Errorf("%w: unknown model kind %q", ErrBadOutput, kind)
	}
}

// firstPrediction checks a response for backend errors and decodes its only row.
func firstPrediction(kind Kind, resp InferenceResponse) (Prediction, error) {
	if resp.Error != "" {
		return Prediction{}, fmt.Errorf("%w: %s", ErrModelUnavailable, resp.Error)
	}
	if len(resp.Predictions) != 1 {
		return Prediction{}, fmt.Errorf("%w: expected 1 prediction, got %d", ErrBadOutput, len(resp.Predictions))
	}
	return decodeOutput(kind, resp.Predictions[0])
}

// checkVector rejects vectors a backend cannot be given.
func checkVector(v features.Vector, width int) error {
	if len(v.Columns) != len(v.Values) {
		return fmt.Errorf("%w: %d columns but %d values", ErrInvalidInput, len(v.Columns), len(v.Values))
	}
	if width > 0 && v.Len() != width {
		return fmt.Errorf("%w: expected %d features, got %d", ErrInvalidInput, width, v.Len())
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

package ml

import (
	"context"
	"time"

	"race-predictor/internal/features"
)

// PredictRequest is one observation addressed to a named model.
type PredictRequest struct {
	Model       string               `json:"model"`
	RequestID   string               `json:"request_id,omitempty"`
	Observation features.Observation `json:"observation"`
}

// Result is a prediction ready for presentation.
type Result struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
	Prediction
	Display   string              `json:"display"`
	Fallbacks []features.Fallback `json:"fallbacks,omitempty"`
	LatencyMs float64             `json:"latency_ms"`
	Timestamp time.Time           `json:"timestamp"`
}

// Encoded is the aligned vector for an observation, without running the model.
type Encoded struct {
	Model     string              `json:"model"`
	Vector    features.Vector     `json:"vector"`
	Fallbacks []features.Fallback `json:"fallbacks,omitempty"`
}

// Options lists the selectable labels per categorical field.
type Options map[string][]string

// Service is what the HTTP and WebSocket surfaces call into.
type Service interface {
	Predict(ctx context.Context, req PredictRequest) (Result, error)
	Encode(model string, obs features.Observation) (Encoded, error)
	Models() []ModelInfo
	Options() Options
}

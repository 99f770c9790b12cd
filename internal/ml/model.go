// Package ml hosts the trained race models behind a small interface and
// serves predictions over HTTP and WebSocket.
//
// The models themselves are opaque artifacts. ProcessModel runs them in a
// python subprocess, RemoteModel forwards vectors to an inference sidecar.
// Both receive vectors already aligned to the model schema.
package ml

import (
	"context"
	"time"

	"race-predictor/internal/features"
)

// Kind tells whether a model produces a number or a class label.
type Kind string

const (
	Regression     Kind = "regression"
	Classification Kind = "classification"
)

// ParseKind accepts the config spelling of a model kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case Regression, Classification:
		return Kind(s), true
	}
	return "", false
}

// Prediction is the raw model output for one vector.
type Prediction struct {
	Kind  Kind    `json:"kind"`
	Value float64 `json:"value"`
	Label string  `json:"label,omitempty"`
}

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Backend    string    `json:"backend"`
	Source     string    `json:"source"`
	Features   int       `json:"features"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`

	// ErrorRate is failures over all requests for this model since start.
	ErrorRate float64 `json:"error_rate"`
}

// Model is a pre-trained model that reads vectors positionally.
type Model interface {
	// Predict runs the model on one vector. The vector columns must match
	// the schema the model was trained on.
	Predict(ctx context.Context, v features.Vector) (Prediction, error)

	// Info reports what was loaded.
	Info() ModelInfo
}

// MetricsInterface defines the metrics methods the prediction path records.
type MetricsInterface interface {
	PredictionsInc(model string)
	FailuresInc(model, reason string)
	LatencyObserve(model string, seconds float64)
	FallbacksInc(model, field string)
	ModelAgeSet(model string, seconds float64)
	TimeoutsInc(model string)
}

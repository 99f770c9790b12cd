package main

import (
	"context"
	"fmt"
	"time"

	"race-predictor/internal/cfg"
	"race-predictor/internal/features"
	"race-predictor/internal/ml"
)

// stubModel stands in for a model that is never asked to predict.
type stubModel struct {
	info ml.ModelInfo
}

func encodeOnlyModel(name string, mc cfg.ModelConfig, width int) (ml.Model, error) {
	kind, _ := ml.ParseKind(mc.Kind)
	return stubModel{info: ml.ModelInfo{
		Name:     name,
		Kind:     kind,
		Backend:  "none",
		Source:   settings.ArtifactPath(mc.Path),
		Features: width,
		LoadedAt: time.Now(),
	}}, nil
}

func (s stubModel) Predict(context.Context, features.Vector) (ml.Prediction, error) {
	return ml.Prediction{}, fmt.Errorf("%w: %s loaded for encoding only", ml.ErrModelUnavailable, s.info.Name)
}

func (s stubModel) Info() ml.ModelInfo { return s.info }

// Package predict turns raw race observations into model predictions: it
// validates inputs, assembles schema-aligned vectors, scales them when the
// model was trained on scaled features, and formats the result.
package predict

import (
	"context"
	"fmt"
	"slices"

	"race-predictor/internal/features"
	"race-predictor/internal/ml"
)

// Pipeline binds one assembler to the model that consumes its vectors.
type Pipeline struct {
	name      string
	assembler *features.Assembler
	scaler    *features.MinMaxScaler // nil when the model reads raw features
	model     ml.Model
}

// NewPipeline checks that the scaler, when present, covers the assembler's
// schema column for column.
func NewPipeline(assembler *features.Assembler, scaler *features.MinMaxScaler, model ml.Model) (*Pipeline, error) {
	if assembler == nil || model == nil {
		return nil, fmt.Errorf("pipeline needs an assembler and a model")
	}
	if scaler != nil {
		if err := scaler.CheckSchema(assembler.Schema()); err != nil {
			return nil, fmt.Errorf("model %s: %w", assembler.Name(), err)
		}
	}
	if n := model.Info().Features; n != 0 && n != len(assembler.Schema()) {
		return nil, fmt.Errorf("model %s expects %d features, schema has %d", assembler.Name(), n, len(assembler.Schema()))
	}
	return &Pipeline{name: assembler.Name(), assembler: assembler, scaler: scaler, model: model}, nil
}

// Name returns the model name.
func (p *Pipeline) Name() string { return p.name }

// Schema returns the column order the model was trained on.
func (p *Pipeline) Schema() []string { return slices.Clone(p.assembler.Schema()) }

// Info describes the underlying model.
func (p *Pipeline) Info() ml.ModelInfo { return p.model.Info() }

// Encode assembles obs into the unscaled feature vector.
func (p *Pipeline) Encode(obs features.Observation) (features.Vector, features.Report, error) {
	return p.assembler.Assemble(obs)
}

// Run encodes obs and predicts. The returned vector is the unscaled one.
func (p *Pipeline) Run(ctx context.Context, obs features.Observation) (ml.Prediction, features.Vector, features.Report, error) {
	vec, report, err := p.assembler.Assemble(obs)
	if err != nil {
		return ml.Prediction{}, features.Vector{}, report, err
	}

	input := vec
	if p.scaler != nil {
		if input, err = p.scaler.Transform(vec); err != nil {
			return ml.Prediction{}, vec, report, err
		}
	}

	pred, err := p.model.Predict(ctx, input)
	if err != nil {
		return ml.Prediction{}, vec, report, err
	}
	return pred, vec, report, nil
}

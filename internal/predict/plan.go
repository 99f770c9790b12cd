package predict

import (
	"fmt"
	"slices"

	"race-predictor/internal/cfg"
	"race-predictor/internal/common"
	"race-predictor/internal/features"
)

// categories are the universes and scale shared by every model.
type categories struct {
	circuits      *features.Universe
	manufacturers *features.Universe
	classes       *features.Scale
}

func newCategories(s cfg.Settings) (categories, error) {
	circuits, err := features.NewUniverse(common.FieldCircuit, s.Circuits)
	if err != nil {
		return categories{}, err
	}
	manufacturers, err := features.NewUniverse(common.FieldManufacturer, s.Manufacturers)
	if err != nil {
		return categories{}, err
	}
	classes, err := features.NewScale(common.FieldClass, s.ClassOrder)
	if err != nil {
		return categories{}, err
	}
	return categories{circuits: circuits, manufacturers: manufacturers, classes: classes}, nil
}

// options are the labels a client may pick from.
func (c categories) options() map[string][]string {
	return map[string][]string{
		common.FieldCircuit:      c.circuits.DisplayLabels(),
		common.FieldManufacturer: c.manufacturers.DisplayLabels(),
		common.FieldClass:        c.classes.Labels(),
	}
}

// buildPlan describes how the named model's feature record is assembled.
// encoders are keyed by the encoded output column.
func buildPlan(name string, mc cfg.ModelConfig, cats categories, encoders map[string]features.TargetEncoder) (features.Plan, error) {
	normName := mc.ManufacturerNormalizer
	if normName == "" {
		normName = string(features.NormalizeSlug)
	}
	manufacturerNorm, err := features.ParseNormalizer(normName)
	if err != nil {
		return features.Plan{}, fmt.Errorf("model %s: %w", name, err)
	}

	oneHot := []features.OneHotGroup{
		{Field: common.FieldCircuit, Prefix: common.CircuitPrefix, Universe: cats.circuits, Normalizer: features.NormalizeFull},
		{Field: common.FieldManufacturer, Prefix: common.ManufacturerPrefix, Universe: cats.manufacturers, Normalizer: manufacturerNorm},
	}

	learned := func(field, column string, norm features.Normalizer) (features.LearnedField, error) {
		enc, ok := encoders[column]
		if !ok {
			return features.LearnedField{}, fmt.Errorf("model %s: no encoder artifact for column %q", name, column)
		}
		return features.LearnedField{Field: field, Column: column, Normalizer: norm, Encoder: enc}, nil
	}

	var (
		plan      features.Plan
		manuCol   string
		teamCol   string
		schemaEnd []string
	)
	switch name {
	case common.LapTimeModel:
		manuCol, teamCol = common.FieldManufacturer, common.ColumnTeamNo
		schemaEnd = []string{manuCol, teamCol, common.FieldClass}
		plan = features.Plan{
			Passthrough: slices.Clone(common.LapTimeScalars),
			Ordinal:     []features.OrdinalField{{Field: common.FieldClass, Column: common.FieldClass, Scale: cats.classes}},
		}
		plan.Schema = common.BuildSchema(common.LapTimeScalars, cats.circuits.Tokens(), cats.manufacturers.Tokens(), schemaEnd...)
	case common.CarClassModel:
		manuCol, teamCol = common.ColumnManufacturerE, common.ColumnTeamE
		schemaEnd = []string{manuCol, teamCol}
		plan = features.Plan{Passthrough: slices.Clone(common.CarClassScalars)}
		plan.Schema = common.BuildSchema(common.CarClassScalars, cats.circuits.Tokens(), cats.manufacturers.Tokens(), schemaEnd...)
	default:
		return features.Plan{}, fmt.Errorf("model %s: no feature plan", name)
	}

	manu, err := learned(common.FieldManufacturer, manuCol, manufacturerNorm)
	if err != nil {
		return features.Plan{}, err
	}
	// The team encoder was fitted on team stint numbers.
	team, err := learned(common.FieldTeamStint, teamCol, features.NormalizeNone)
	if err != nil {
		return features.Plan{}, err
	}

	plan.Name = name
	plan.OneHot = oneHot
	plan.Learned = []features.LearnedField{manu, team}
	if len(mc.Schema) > 0 {
		plan.Schema = slices.Clone(mc.Schema)
	}
	return plan, nil
}

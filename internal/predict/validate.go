package predict

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"race-predictor/internal/common"
	"race-predictor/internal/features"
	"race-predictor/internal/ml"
)

// Bound is the accepted range of one numeric input field.
type Bound struct {
	Min     float64
	Max     float64
	HasMax  bool
	Integer bool
}

func atLeast(min float64) Bound { return Bound{Min: min} }
func countFrom(min float64) Bound { return Bound{Min: min, Integer: true} }
func countBetween(min, max float64) Bound { return Bound{Min: min, Max: max, HasMax: true, Integer: true} }

// Bounds are the input ranges each model accepts, as the collection forms
// enforced them.
var Bounds = map[string]map[string]Bound{
	common.LapTimeModel: {
		"driver_number":   countFrom(1),
		"lap_number":      countFrom(1),
		"kph":             atLeast(0),
		"top_speed":       atLeast(0),
		"pit_time":        atLeast(0),
		"driver_stint_no": countFrom(0),
		"team_stint_no":   countFrom(0),
		"position":        countFrom(1),
		"class_position":  countFrom(1),
		"season_start":    countBetween(common.MinSeasonStart, common.MaxSeasonStart),
	},
	common.CarClassModel: {
		"car_number":      countFrom(1),
		"driver_number":   countFrom(1),
		"lap_number":      countBetween(1, common.MaxClassLap),
		"kph":             atLeast(common.MinClassSpeed),
		"top_speed":       atLeast(common.MinClassSpeed),
		"lap_time_s":      atLeast(common.MinClassLapTime),
		"driver_stint_no": countBetween(1, common.MaxClassStint),
		"team_stint_no":   countFrom(1),
		"position":        countFrom(1),
		"round":           countBetween(1, common.MaxRound),
		"season_start":    countBetween(common.MinSeasonStart, common.MaxSeasonStart),
	},
}

// Validate checks the numeric fields of obs against the model's bounds.
// Absent fields are left to the assembler, which reports them as missing.
func Validate(model string, obs features.Observation) error {
	bounds, ok := Bounds[model]
	if !ok {
		return nil
	}

	var problems []string
	for field, b := range bounds {
		v, ok := obs.Numbers[field]
		if !ok {
			continue
		}
		if msg := b.check(v); msg != "" {
			problems = append(problems, field+" "+msg)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ml.ErrInvalidInput, strings.Join(problems, "; "))
}

func (b Bound) check(v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "is not a finite number"
	case v < b.Min:
		return fmt.Sprintf("must be at least %g, got %g", b.Min, v)
	case b.HasMax && v > b.Max:
		return fmt.Sprintf("must be at most %g, got %g", b.Max, v)
	case b.Integer && v != math.Trunc(v):
		return fmt.Sprintf("must be a whole number, got %g", v)
	}
	return ""
}

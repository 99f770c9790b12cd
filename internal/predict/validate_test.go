package predict

import (
	"errors"
	"testing"

	"race-predictor/internal/common"
	"race-predictor/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		model   string
		field   string
		value   float64
		wantErr bool
	}{
		{"lap time valid speed", common.LapTimeModel, "kph", 0, false},
		{"lap time negative pit time", common.LapTimeModel, "pit_time", -1, true},
		{"lap time zero lap", common.LapTimeModel, "lap_number", 0, true},
		{"lap time fractional position", common.LapTimeModel, "position", 2.5, true},
		{"lap time zero stint allowed", common.LapTimeModel, "team_stint_no", 0, false},
		{"lap time season too early", common.LapTimeModel, "season_start", 2011, true},
		{"lap time season upper edge", common.LapTimeModel, "season_start", 2030, false},
		{"car class slow", common.CarClassModel, "kph", 99.9, true},
		{"car class lap limit", common.CarClassModel, "lap_number", 400, false},
		{"car class lap over limit", common.CarClassModel, "lap_number", 401, true},
		{"car class stint over limit", common.CarClassModel, "driver_stint_no", 11, true},
		{"car class short lap time", common.CarClassModel, "lap_time_s", 59.9, true},
		{"car class round zero", common.CarClassModel, "round", 0, true},
		{"unbounded field", common.CarClassModel, "fuel_load", -5, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := lapObservation()
			if tc.model == common.CarClassModel {
				obs = classObservation()
			}
			obs.SetNumber(tc.field, tc.value)

			err := Validate(tc.model, obs)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ml.ErrInvalidInput))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestValidate_SortsProblems(t *testing.T) {
	obs := classObservation()
	obs.SetNumber("round", 20)
	obs.SetNumber("kph", 10)

	err := Validate(common.CarClassModel, obs)
	require.Error(t, err)
	assert.Equal(t, "invalid input: kph must be at least 100, got 10; round must be at most 12, got 20", err.Error())
}

func TestValidate_UnknownModelHasNoBounds(t *testing.T) {
	assert.NoError(t, Validate("pit_stop", lapObservation()))
}

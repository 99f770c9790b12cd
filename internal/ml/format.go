package ml

import (
	"fmt"
	"math"
	"strconv"
)

const invalidDuration = "--:--:---"

// FormatDuration renders seconds as MM:SS:mmm. Components are truncated, not
// rounded, and minutes grow past 59 instead of rolling into hours.
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return invalidDuration
	}
	minutes := math.Floor(seconds / 60)
	secs := math.Floor(math.Mod(seconds, 60))
	millis := math.Floor(math.Mod(seconds, 1) * 1000)
	// float error can push the remainder to exactly 1000
	if millis >= 1000 {
		millis = 999
	}
	return fmt.Sprintf("%02d:%02d:%03d", int64(minutes), int64(secs), int64(millis))
}

// FormatResult renders a prediction for display: a lap time for regression
// models, the class label unchanged for classifiers.
func FormatResult(p Prediction) string {
	switch p.Kind {
	case Regression:
		return FormatDuration(p.Value)
	case Classification:
		if p.Label != "" {
			return p.Label
		}
		return strconv.FormatFloat(p.Value, 'f', -1, 64)
	default:
		return strconv.FormatFloat(p.Value, 'f', -1, 64)
	}
}

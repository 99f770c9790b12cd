package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"race-predictor/internal/features"
	"race-predictor/internal/ml"

	"github.com/rs/zerolog/log"
)

// Predictor is the part of the prediction service a batch run needs.
type Predictor interface {
	Predict(ctx context.Context, req ml.PredictRequest) (ml.Result, error)
}

// Summary counts the outcome of a run.
type Summary struct {
	Rows      int
	Succeeded int
	Failed    int
	Fallbacks int
	Duration  time.Duration
}

var resultHeader = []string{"row", "request_id", "prediction", "label", "display", "fallbacks", "error"}

// Run predicts every observation in order and writes a result row for each.
// A failing row is written with its error and does not stop the run; a
// cancelled context or a write failure does.
func Run(ctx context.Context, p Predictor, model string, observations []features.Observation, w io.Writer) (Summary, error) {
	start := time.Now()
	summary := Summary{Rows: len(observations)}

	writer := csv.NewWriter(w)
	if err := writer.Write(resultHeader); err != nil {
		return summary, err
	}

	for i, obs := range observations {
		if err := ctx.Err(); err != nil {
			writer.Flush()
			return summary, err
		}

		row := strconv.Itoa(i + 1)
		res, err := p.Predict(ctx, ml.PredictRequest{Model: model, Observation: obs})
		var record []string
		if err != nil {
			summary.Failed++
			log.Debug().Err(err).Str("row", row).Msg("Row failed")
			record = []string{row, res.RequestID, "", "", "", "", err.Error()}
		} else {
			summary.Succeeded++
			summary.Fallbacks += len(res.Fallbacks)
			record = []string{
				row,
				res.RequestID,
				strconv.FormatFloat(res.Value, 'g', -1, 64),
				res.Label,
				res.Display,
				fallbackFields(res.Fallbacks),
				"",
			}
		}
		if err := writer.Write(record); err != nil {
			return summary, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start)
	log.Info().
		Str("model", model).
		Int("rows", summary.Rows).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("fallbacks", summary.Fallbacks).
		Dur("duration", summary.Duration).
		Msg("Batch scored")
	return summary, nil
}

func fallbackFields(fbs []features.Fallback) string {
	s := ""
	for i, fb := range fbs {
		if i > 0 {
			s += ";"
		}
		s += fmt.Sprintf("%s=%s", fb.Field, fb.Token)
	}
	return s
}

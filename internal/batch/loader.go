// Package batch scores a CSV file of race observations through a model and
// writes one result row per input row.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"race-predictor/internal/features"

	"github.com/rs/zerolog/log"
)

// LoadObservations reads observations from r. The header names the fields.
// Columns listed in labelFields are kept as labels, every other column must
// be numeric. Empty cells leave the field absent.
func LoadObservations(r io.Reader, labelFields ...string) ([]features.Observation, error) {
	labels := make(map[string]bool, len(labelFields))
	for _, f := range labelFields {
		labels[f] = true
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var out []features.Observation
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		obs := features.NewObservation()
		for i, col := range header {
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			if labels[col] {
				obs.SetLabel(col, cell)
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %q is not a number", line, col, cell)
			}
			obs.SetNumber(col, v)
		}
		out = append(out, obs)
	}

	log.Info().Int("rows", len(out)).Strs("columns", header).Msg("Observations loaded")
	return out, nil
}

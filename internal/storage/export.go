package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"
)

var exportLead = []string{"id", "timestamp", "model"}
var exportTail = []string{"prediction", "label", "display"}

// ExportCSV writes model's history in [start, end] as CSV: the encoded vector
// columns followed by the prediction, one row per record. Records encoded
// against a different schema than the first one are an error.
func (s *Store) ExportCSV(model string, start, end time.Time, w io.Writer) (int, error) {
	records, err := s.GetPredictions(model, start, end)
	if err != nil {
		return 0, err
	}

	var columns []string
	if len(records) > 0 {
		columns = records[0].Vector.Columns
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(exportLead)+len(columns)+len(exportTail))
	header = append(header, exportLead...)
	header = append(header, columns...)
	header = append(header, exportTail...)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		if !slices.Equal(rec.Vector.Columns, columns) {
			return i, fmt.Errorf("record %s was encoded with a different schema", rec.ID)
		}

		row := make([]string, 0, len(header))
		row = append(row, rec.ID, rec.Timestamp.Format(time.RFC3339Nano), rec.Model)
		for _, v := range rec.Vector.Values {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		row = append(row, strconv.FormatFloat(rec.Value, 'f', -1, 64), rec.Label, rec.Display)

		if err := cw.Write(row); err != nil {
			return i, fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return len(records), cw.Error()
}

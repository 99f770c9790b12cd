package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"race-predictor/internal/features"
)

func testRecord(model string, ts time.Time, value float64) PredictionRecord {
	obs := features.NewObservation()
	obs.SetNumber("kph", 228.4)
	obs.SetLabel("circuit", "Le Mans")
	return PredictionRecord{
		Model:       model,
		Timestamp:   ts,
		Observation: obs,
		Vector:      features.Vector{Columns: []string{"kph", "circuit_le_mans"}, Values: []float64{228.4, 1}},
		Kind:        "regression",
		Value:       value,
		Display:     "03:32:750",
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, "race-predictor.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	// A regular file cannot be used as the data directory.
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := New(filepath.Join(file, "data")); err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_StoreAndGetPredictions(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 6, 15, 16, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := store.StorePrediction(testRecord("lap_time", base.Add(time.Duration(i)*time.Minute), 210+float64(i))); err != nil {
			t.Fatalf("Failed to store record %d: %v", i, err)
		}
	}
	if _, err := store.StorePrediction(testRecord("car_class", base.Add(2*time.Minute), 0)); err != nil {
		t.Fatalf("Failed to store car_class record: %v", err)
	}

	records, err := store.GetPredictions("lap_time", base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("GetPredictions failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records in range, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Value != 211+float64(i) {
			t.Errorf("Record %d: expected value %v, got %v", i, 211+float64(i), rec.Value)
		}
		if rec.ID == "" {
			t.Errorf("Record %d has no id", i)
		}
		if rec.Observation.Labels["circuit"] != "Le Mans" {
			t.Errorf("Record %d lost its observation: %+v", i, rec.Observation)
		}
	}

	all, err := store.GetPredictions("car_class", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetPredictions failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 car_class record, got %d", len(all))
	}
}

func TestStore_OpenStartRange(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 6, 15, 16, 0, 0, 0, time.UTC)

	if _, err := store.StorePrediction(testRecord("lap_time", base, 210)); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}

	for _, start := range []time.Time{{}, time.Unix(0, 0).UTC(), time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)} {
		records, err := store.GetPredictions("lap_time", start, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("GetPredictions from %v failed: %v", start, err)
		}
		if len(records) != 1 {
			t.Errorf("From %v: expected 1 record, got %d", start, len(records))
		}
	}

	if got, want := string(timeKey("lap_time", time.Time{})), "lap_time_00000000000000000000"; got != want {
		t.Errorf("timeKey(zero) = %q, want %q", got, want)
	}
}

func TestStore_ModelPrefixIsolation(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 15, 16, 0, 0, 0, time.UTC)

	if _, err := store.StorePrediction(testRecord("lap", ts, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.StorePrediction(testRecord("lap_time", ts, 2)); err != nil {
		t.Fatal(err)
	}

	records, err := store.GetPredictions("lap", ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Value != 1 {
		t.Errorf("Expected only the lap record, got %+v", records)
	}

	n, err := store.Count("lap")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected count 1 for lap, got %d", n)
	}
}

func TestStore_Get(t *testing.T) {
	store := newTestStore(t)

	id, err := store.StorePrediction(testRecord("lap_time", time.Time{}, 212.75))
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Value != 212.75 {
		t.Errorf("Expected value 212.75, got %v", rec.Value)
	}
	if rec.Timestamp.IsZero() {
		t.Error("Expected timestamp to be assigned")
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_StorePredictionRequiresModel(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.StorePrediction(PredictionRecord{}); err == nil {
		t.Error("Expected error for record without model")
	}
}

func TestStore_ExportCSV(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 6, 15, 16, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := store.StorePrediction(testRecord("lap_time", base.Add(time.Duration(i)*time.Second), 212.75)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := store.ExportCSV("lap_time", base, base.Add(time.Minute), &buf)
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rows exported, got %d", n)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Exported CSV does not parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}

	wantHeader := []string{"id", "timestamp", "model", "kph", "circuit_le_mans", "prediction", "label", "display"}
	for i, h := range wantHeader {
		if rows[0][i] != h {
			t.Errorf("Header column %d: expected %q, got %q", i, h, rows[0][i])
		}
	}
	if rows[1][3] != "228.4" || rows[1][5] != "212.75" || rows[1][7] != "03:32:750" {
		t.Errorf("Unexpected row: %v", rows[1])
	}
}

func TestStore_ExportCSVRejectsMixedSchemas(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 6, 15, 16, 0, 0, 0, time.UTC)

	if _, err := store.StorePrediction(testRecord("lap_time", base, 1)); err != nil {
		t.Fatal(err)
	}
	other := testRecord("lap_time", base.Add(time.Second), 2)
	other.Vector = features.Vector{Columns: []string{"kph"}, Values: []float64{200}}
	if _, err := store.StorePrediction(other); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := store.ExportCSV("lap_time", base, base.Add(time.Minute), &buf); err == nil {
		t.Error("Expected error for records with different schemas")
	}
}

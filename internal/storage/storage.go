// Package storage keeps a history of predictions in BoltDB so past requests
// can be inspected and exported for retraining.
//
// Records live in a single bucket keyed "{model}_{unixnano}_{id}", so a
// cursor seek on the model prefix walks one model's history in time order.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"race-predictor/internal/common"
	"race-predictor/internal/features"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions"

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("record not found")

var epoch = time.Unix(0, 0)

// PredictionRecord is one served prediction with the inputs that produced it.
type PredictionRecord struct {
	ID          string               `json:"id"`
	Model       string               `json:"model"`
	Timestamp   time.Time            `json:"timestamp"`
	Observation features.Observation `json:"observation"`
	Vector      features.Vector      `json:"vector"`
	Kind        string               `json:"kind"`
	Value       float64              `json:"value"`
	Label       string               `json:"label,omitempty"`
	Display     string               `json:"display"`
	Fallbacks   []features.Fallback  `json:"fallbacks,omitempty"`
	LatencyMs   float64              `json:"latency_ms"`
}

// Store provides persistent prediction history using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the history database under dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	dbPath := filepath.Join(dataPath, common.DefaultDBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction writes a record, assigning an id and timestamp when unset.
// It returns the record id.
func (s *Store) StorePrediction(rec PredictionRecord) (string, error) {
	if rec.Model == "" {
		return "", fmt.Errorf("record has no model")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal prediction: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		return b.Put(recordKey(rec.Model, rec.Timestamp, rec.ID), data)
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// GetPredictions returns the records of model with start <= timestamp <= end,
// oldest first.
func (s *Store) GetPredictions(model string, start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		prefix := []byte(model + "_")

		for k, v := c.Seek(timeKey(model, start)); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			if rec.Model != model {
				continue
			}
			if rec.Timestamp.After(end) {
				break
			}
			if !rec.Timestamp.Before(start) {
				records = append(records, rec)
			}
		}
		return nil
	})

	return records, err
}

// Get looks a record up by id.
func (s *Store) Get(id string) (PredictionRecord, error) {
	var rec PredictionRecord
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		suffix := []byte("_" + id)
		return tx.Bucket([]byte(predictionsBucket)).ForEach(func(k, v []byte) error {
			if found || !bytes.HasSuffix(k, suffix) {
				return nil
			}
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record %s: %w", id, err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return PredictionRecord{}, err
	}
	if !found {
		return PredictionRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Count returns how many records are stored for model.
func (s *Store) Count(model string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		prefix := []byte(model + "_")
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if isModelKey(k, model) {
				n++
			}
		}
		return nil
	})
	return n, err
}

// timeKey is zero-padded so byte order matches time order. Instants before
// the epoch, including the zero time, share the lowest key.
func timeKey(model string, ts time.Time) []byte {
	ns := int64(0)
	if ts.After(epoch) {
		ns = ts.UnixNano()
	}
	return []byte(fmt.Sprintf("%s_%020d", model, ns))
}

func recordKey(model string, ts time.Time, id string) []byte {
	return append(timeKey(model, ts), []byte("_"+id)...)
}

// isModelKey guards against one model name being a prefix of another.
func isModelKey(k []byte, model string) bool {
	rest := k[len(model)+1:]
	if len(rest) < 21 || rest[20] != '_' {
		return false
	}
	for _, b := range rest[:20] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

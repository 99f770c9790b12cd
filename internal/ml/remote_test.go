package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inferenceSidecar(t *testing.T, predict http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/predict/", predict)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteModel_Predict(t *testing.T) {
	var got InferenceRequest
	srv := inferenceSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/car_class", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":["HYPERCAR"]}`))
	})

	m, err := NewRemoteModel(RemoteConfig{Name: "car_class", Kind: Classification, BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	p, err := m.Predict(context.Background(), testVector())
	require.NoError(t, err)
	assert.Equal(t, "HYPERCAR", p.Label)
	assert.Equal(t, []string{"kph", "class"}, got.Columns)
	assert.Equal(t, [][]float64{{228.4, 3}}, got.Rows)

	info := m.Info()
	assert.Equal(t, "remote", info.Backend)
	assert.Equal(t, srv.URL+"/", info.Source)
}

func TestRemoteModel_ErrorStatus(t *testing.T) {
	srv := inferenceSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	})

	m, err := NewRemoteModel(RemoteConfig{Name: "lap_time", Kind: Regression, BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), testVector())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestRemoteModel_Timeout(t *testing.T) {
	srv := inferenceSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	metrics := NewMockMetrics()
	m, err := NewRemoteModel(RemoteConfig{Name: "lap_time", Kind: Regression, BaseURL: srv.URL, Timeout: time.Second}, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Predict(ctx, testVector())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.Equal(t, 1, metrics.Count(metrics.Timeouts, "lap_time"))
}

func TestNewRemoteModel_HealthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemoteModel(RemoteConfig{Name: "lap_time", Kind: Regression, BaseURL: srv.URL}, nil)
	assert.Error(t, err)

	_, err = NewRemoteModel(RemoteConfig{Name: "lap_time", Kind: Regression}, nil)
	assert.Error(t, err)
}

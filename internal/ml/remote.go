package ml

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"race-predictor/internal/common"
	"race-predictor/internal/features"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// RemoteConfig describes a model served by an inference sidecar.
type RemoteConfig struct {
	Name     string
	Kind     Kind
	BaseURL  string
	Timeout  time.Duration
	Features int
}

// RemoteModel posts vectors to {BaseURL}/predict/{Name} and expects an
// InferenceResponse back.
type RemoteModel struct {
	cfg      RemoteConfig
	rest     *resty.Client
	loadedAt time.Time
	metrics  MetricsInterface
}

// NewRemoteModel builds the client and probes {BaseURL}/health.
func NewRemoteModel(cfg RemoteConfig, metrics MetricsInterface) (*RemoteModel, error) {
	if _, ok := ParseKind(string(cfg.Kind)); !ok {
		return nil, fmt.Errorf("model %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model %s: inference URL is empty", cfg.Name)
	}

	r := resty.New()
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	} else {
		r.SetTimeout(defaultProcessTimeout)
	}
	r.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	r.SetHeader("Content-Type", "application/json")

	m := &RemoteModel{cfg: cfg, rest: r, metrics: metrics}

	resp, err := r.R().Get("/health")
	if err != nil {
		return nil, fmt.Errorf("model %s: health check: %w", cfg.Name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("model %s: health check: status %d, body: %s", cfg.Name, resp.StatusCode(), resp.String())
	}
	m.loadedAt = time.Now()

	log.Info().
		Str("model", cfg.Name).
		Str("kind", string(cfg.Kind)).
		Str("url", cfg.BaseURL).
		Msg("Remote model ready")

	return m, nil
}

// Predict posts one vector to the sidecar.
func (m *RemoteModel) Predict(ctx context.Context, v features.Vector) (Prediction, error) {
	if err := checkVector(v, m.cfg.Features); err != nil {
		return Prediction{}, err
	}

	var out InferenceResponse
	resp, err := m.rest.R().
		SetContext(ctx).
		SetBody(newInferenceRequest(m.cfg.Name, v)).
		SetResult(&out).
		SetError(&out).
		Post("/predict/" + m.cfg.Name)
	if err != nil {
		if ctx.Err() != nil || strings.Contains(err.Error(), "Client.Timeout") {
			if m.metrics != nil {
				m.metrics.TimeoutsInc(m.cfg.Name)
			}
		}
		return Prediction{}, fmt.Errorf("%w: request failed: %v", ErrModelUnavailable, err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return Prediction{}, fmt.Errorf("%w: status %d: %s", ErrModelUnavailable, resp.StatusCode(), out.Error)
		}
		return Prediction{}, fmt.Errorf("%w: status %d, body: %s", ErrModelUnavailable, resp.StatusCode(), resp.String())
	}

	return firstPrediction(m.cfg.Kind, out)
}

// Info reports the sidecar endpoint.
func (m *RemoteModel) Info() ModelInfo {
	return ModelInfo{
		Name:     m.cfg.Name,
		Kind:     m.cfg.Kind,
		Backend:  common.BackendRemote,
		Source:   m.cfg.BaseURL,
		Features: m.cfg.Features,
		LoadedAt: m.loadedAt,
	}
}

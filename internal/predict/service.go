package predict

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"race-predictor/internal/features"
	"race-predictor/internal/metrics"
	"race-predictor/internal/ml"
	"race-predictor/internal/storage"
)

// History persists served predictions.
type History interface {
	StorePrediction(rec storage.PredictionRecord) (string, error)
}

// storeRecorder is implemented by metrics sinks that count history writes.
type storeRecorder interface {
	RecordStored(err error)
}

// errorRater is implemented by metrics sinks that can read back failure ratios.
type errorRater interface {
	ErrorRate(model string) float64
}

// Service serves predictions for a fixed set of pipelines. It is immutable
// after NewService and safe for concurrent use.
type Service struct {
	pipelines map[string]*Pipeline
	options   ml.Options
	history   History
	metrics   ml.MetricsInterface
	timeout   time.Duration
	now       func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithHistory records every successful prediction to h.
func WithHistory(h History) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m ml.MetricsInterface) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// NewService indexes pipelines by model name.
func NewService(pipelines []*Pipeline, options ml.Options, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		pipelines: make(map[string]*Pipeline, len(pipelines)),
		options:   options,
		now:       time.Now,
	}
	for _, p := range pipelines {
		if _, dup := s.pipelines[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate model %q", p.Name())
		}
		s.pipelines[p.Name()] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ ml.Service = (*Service)(nil)

// Predict validates, encodes and scores one observation.
func (s *Service) Predict(ctx context.Context, req ml.PredictRequest) (ml.Result, error) {
	start := time.Now()
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	logger := log.With().Str("model", req.Model).Str("request_id", id).Logger()

	p, ok := s.pipelines[req.Model]
	if !ok {
		s.failure(req.Model, metrics.ReasonUnknown)
		return ml.Result{RequestID: id}, fmt.Errorf("%w: %q", ml.ErrUnknownModel, req.Model)
	}
	if err := Validate(req.Model, req.Observation); err != nil {
		s.failure(req.Model, metrics.ReasonValidation)
		logger.Debug().Err(err).Strs("fields", req.Observation.Fields()).Msg("Rejected observation")
		return ml.Result{RequestID: id}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	pred, vec, report, err := p.Run(ctx, req.Observation)
	s.recordFallbacks(req.Model, report)
	if err != nil {
		reason := failureReason(err)
		s.failure(req.Model, reason)
		logger.Error().Err(err).Str("reason", reason).Msg("Prediction failed")
		return ml.Result{RequestID: id}, err
	}

	elapsed := time.Since(start)
	res := ml.Result{
		RequestID:  id,
		Model:      req.Model,
		Prediction: pred,
		Display:    ml.FormatResult(pred),
		Fallbacks:  report.Fallbacks,
		LatencyMs:  float64(elapsed.Microseconds()) / 1000,
		Timestamp:  s.now().UTC(),
	}
	if s.metrics != nil {
		s.metrics.PredictionsInc(req.Model)
		s.metrics.LatencyObserve(req.Model, elapsed.Seconds())
	}
	logger.Debug().Str("display", res.Display).Float64("latency_ms", res.LatencyMs).Msg("Prediction served")

	s.store(res, req.Observation, vec)
	return res, nil
}

// Encode returns the aligned vector for obs without calling the model.
func (s *Service) Encode(model string, obs features.Observation) (ml.Encoded, error) {
	p, ok := s.pipelines[model]
	if !ok {
		return ml.Encoded{}, fmt.Errorf("%w: %q", ml.ErrUnknownModel, model)
	}
	if err := Validate(model, obs); err != nil {
		return ml.Encoded{}, err
	}
	vec, report, err := p.Encode(obs)
	if err != nil {
		return ml.Encoded{}, err
	}
	return ml.Encoded{Model: model, Vector: vec, Fallbacks: report.Fallbacks}, nil
}

// Models describes the loaded models, sorted by name.
func (s *Service) Models() []ml.ModelInfo {
	names := slices.Sorted(maps.Keys(s.pipelines))
	rater, _ := s.metrics.(errorRater)
	infos := make([]ml.ModelInfo, 0, len(names))
	for _, name := range names {
		info := s.pipelines[name].Info()
		if rater != nil {
			info.ErrorRate = rater.ErrorRate(name)
		}
		infos = append(infos, info)
	}
	return infos
}

// Options returns a copy of the selectable labels.
func (s *Service) Options() ml.Options {
	out := make(ml.Options, len(s.options))
	for k, v := range s.options {
		out[k] = slices.Clone(v)
	}
	return out
}

func (s *Service) failure(model, reason string) {
	if s.metrics != nil {
		s.metrics.FailuresInc(model, reason)
	}
}

func (s *Service) recordFallbacks(model string, report features.Report) {
	for _, fb := range report.Fallbacks {
		if s.metrics != nil {
			s.metrics.FallbacksInc(model, fb.Field)
		}
		log.Warn().
			Str("model", model).
			Str("field", fb.Field).
			Str("label", fb.Label).
			Str("token", fb.Token).
			Msg("Category outside the training universe, encoded as all zeros")
	}
}

// store writes the result to history. Failures are logged, never returned.
func (s *Service) store(res ml.Result, obs features.Observation, vec features.Vector) {
	if s.history == nil {
		return
	}
	_, err := s.history.StorePrediction(storage.PredictionRecord{
		ID:          res.RequestID,
		Model:       res.Model,
		Timestamp:   res.Timestamp,
		Observation: obs,
		Vector:      vec,
		Kind:        string(res.Kind),
		Value:       res.Value,
		Label:       res.Label,
		Display:     res.Display,
		Fallbacks:   res.Fallbacks,
		LatencyMs:   res.LatencyMs,
	})
	if rec, ok := s.metrics.(storeRecorder); ok {
		rec.RecordStored(err)
	}
	if err != nil {
		log.Error().Err(err).Str("request_id", res.RequestID).Msg("Failed to store prediction")
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ml.ErrInvalidInput):
		return metrics.ReasonValidation
	case errors.Is(err, features.ErrMissingFeature),
		errors.Is(err, features.ErrUnknownOrdinalCategory),
		errors.Is(err, features.ErrUnknownCategory),
		errors.Is(err, features.ErrInvalidArtifact):
		return metrics.ReasonEncoding
	default:
		return metrics.ReasonModel
	}
}

package predict

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"race-predictor/internal/cfg"
	"race-predictor/internal/common"
	"race-predictor/internal/features"
	"race-predictor/internal/ml"
)

// ModelFactory builds the model named name, expecting width features.
type ModelFactory func(name string, mc cfg.ModelConfig, width int) (ml.Model, error)

// Loader builds the Service once. The first outcome, success or failure,
// is returned to every later caller.
type Loader struct {
	settings cfg.Settings
	metrics  ml.MetricsInterface
	opts     []ServiceOption
	factory  ModelFactory

	once sync.Once
	svc  *Service
	err  error
}

// NewLoader prepares a loader for settings. opts are applied to the Service.
func NewLoader(settings cfg.Settings, metrics ml.MetricsInterface, opts ...ServiceOption) *Loader {
	l := &Loader{settings: settings, metrics: metrics, opts: opts}
	l.factory = l.backendModel
	return l
}

// WithModelFactory replaces the backend used to build models.
func (l *Loader) WithModelFactory(f ModelFactory) *Loader {
	l.factory = f
	return l
}

// Load loads every configured artifact and model on first call.
func (l *Loader) Load() (*Service, error) {
	l.once.Do(func() {
		l.svc, l.err = l.load()
		if l.err != nil {
			log.Error().Err(l.err).Msg("Failed to load models")
		}
	})
	return l.svc, l.err
}

func (l *Loader) load() (*Service, error) {
	cats, err := newCategories(l.settings)
	if err != nil {
		return nil, err
	}

	var pipelines []*Pipeline
	for _, name := range l.settings.ModelNames() {
		p, err := l.loadPipeline(name, l.settings.Models[name], cats)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
		log.Info().
			Str("model", name).
			Int("features", len(p.Schema())).
			Str("backend", p.Info().Backend).
			Str("source", p.Info().Source).
			Msg("Model loaded")
	}

	opts := append([]ServiceOption{WithMetrics(l.metrics), WithTimeout(l.settings.ModelTimeout)}, l.opts...)
	return NewService(pipelines, cats.options(), opts...)
}

func (l *Loader) loadPipeline(name string, mc cfg.ModelConfig, cats categories) (*Pipeline, error) {
	encoders := make(map[string]features.TargetEncoder, len(mc.Encoders))
	for column, path := range mc.Encoders {
		enc, err := features.LoadMeanEncoder(l.settings.ArtifactPath(path))
		if err != nil {
			return nil, fmt.Errorf("model %s: encoder %s: %w", name, column, err)
		}
		encoders[column] = enc
	}

	plan, err := buildPlan(name, mc, cats, encoders)
	if err != nil {
		return nil, err
	}
	assembler, err := features.NewAssembler(plan)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}

	var scaler *features.MinMaxScaler
	if mc.Scaler != "" {
		if scaler, err = features.LoadMinMaxScaler(l.settings.ArtifactPath(mc.Scaler)); err != nil {
			return nil, fmt.Errorf("model %s: scaler: %w", name, err)
		}
		log.Debug().
			Str("model", name).
			Int("columns", len(scaler.Columns())).
			Str("path", l.settings.ArtifactPath(mc.Scaler)).
			Msg("Scaler loaded")
	}

	model, err := l.factory(name, mc, len(plan.Schema))
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	return NewPipeline(assembler, scaler, model)
}

func (l *Loader) backendModel(name string, mc cfg.ModelConfig, width int) (ml.Model, error) {
	kind, ok := ml.ParseKind(mc.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown model kind %q", mc.Kind)
	}

	switch l.settings.Backend {
	case common.BackendRemote:
		m, err := ml.NewRemoteModel(ml.RemoteConfig{
			Name:     name,
			Kind:     kind,
			BaseURL:  l.settings.InferenceURL,
			Timeout:  l.settings.ModelTimeout,
			Features: width,
		}, l.metrics)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		m, err := ml.NewProcessModel(ml.ProcessConfig{
			Name:       name,
			Kind:       kind,
			ModelPath:  l.settings.ArtifactPath(mc.Path),
			PythonPath: l.settings.PythonPath,
			Timeout:    l.settings.ModelTimeout,
			Features:   width,
		}, l.metrics)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

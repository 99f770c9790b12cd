// Package metrics provides Prometheus metrics for the race predictor.
// Every series is labelled by model so the lap-time regressor and the
// car-class classifier can be watched separately.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons used as the reason label of FailuresTotal.
const (
	ReasonValidation = "validation"
	ReasonEncoding   = "encoding"
	ReasonModel      = "model"
	ReasonUnknown    = "unknown_model"
)

// Metrics holds all Prometheus metrics for the prediction path.
type Metrics struct {
	PredictionsTotal *prometheus.CounterVec   // successful predictions per model
	FailuresTotal    *prometheus.CounterVec   // failed requests per model and reason
	Latency          *prometheus.HistogramVec // end-to-end prediction latency
	FallbacksTotal   *prometheus.CounterVec   // one-hot groups that fell back to all zeros
	ModelAge         *prometheus.GaugeVec     // seconds since the model artifact was written
	Timeouts         *prometheus.CounterVec   // model calls that hit the deadline
	RecordsStored    prometheus.Counter       // predictions written to history
	StorageErrors    prometheus.Counter       // failed history writes

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	m := &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "race_predictions_total",
			Help: "Total number of successful predictions",
		}, []string{"model"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "race_prediction_failures_total",
			Help: "Total number of failed prediction requests",
		}, []string{"model", "reason"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "race_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (encode, scale and model call)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"model"}),
		FallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "race_onehot_fallbacks_total",
			Help: "Total number of labels outside the category universe",
		}, []string{"model", "field"}),
		ModelAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "race_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}, []string{"model"}),
		Timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "race_model_timeouts_total",
			Help: "Total number of model calls that timed out",
		}, []string{"model"}),
		RecordsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "race_history_records_total",
			Help: "Total number of predictions written to history",
		}),
		StorageErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "race_history_errors_total",
			Help: "Total number of failed history writes",
		}),
	}

	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// ErrorRate returns failures / (predictions + failures) for a model, read
// back from the registry. Returns 0 when nothing was recorded.
func (m *Metrics) ErrorRate(model string) float64 {
	if m.gatherer == nil {
		return 0
	}
	families, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	var ok, failed float64
	for _, mf := range families {
		switch mf.GetName() {
		case "race_predictions_total":
			for _, metric := range mf.GetMetric() {
				if labelValue(metric.GetLabel(), "model") == model {
					ok += metric.GetCounter().GetValue()
				}
			}
		case "race_prediction_failures_total":
			for _, metric := range mf.GetMetric() {
				if labelValue(metric.GetLabel(), "model") == model {
					failed += metric.GetCounter().GetValue()
				}
			}
		}
	}

	if ok+failed == 0 {
		return 0
	}
	return failed / (ok + failed)
}

type labelPair interface {
	GetName() string
	GetValue() string
}

func labelValue[L labelPair](labels []L, name string) string {
	for _, l := range labels {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

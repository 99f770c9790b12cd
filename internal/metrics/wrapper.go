package metrics

// MetricsWrapper adapts Metrics to the per-model recording calls the
// prediction pipeline and model backends make.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(model string) {
	w.m.PredictionsTotal.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) FailuresInc(model, reason string) {
	w.m.FailuresTotal.WithLabelValues(model, reason).Inc()
}

func (w *MetricsWrapper) LatencyObserve(model string, seconds float64) {
	w.m.Latency.WithLabelValues(model).Observe(seconds)
}

func (w *MetricsWrapper) FallbacksInc(model, field string) {
	w.m.FallbacksTotal.WithLabelValues(model, field).Inc()
}

func (w *MetricsWrapper) ModelAgeSet(model string, seconds float64) {
	w.m.ModelAge.WithLabelValues(model).Set(seconds)
}

func (w *MetricsWrapper) TimeoutsInc(model string) {
	w.m.Timeouts.WithLabelValues(model).Inc()
}

// ErrorRate reports the failure ratio of model, see Metrics.ErrorRate.
func (w *MetricsWrapper) ErrorRate(model string) float64 {
	return w.m.ErrorRate(model)
}

// RecordStored counts a history write and whether it failed.
func (w *MetricsWrapper) RecordStored(err error) {
	if err != nil {
		w.m.StorageErrors.Inc()
		return
	}
	w.m.RecordsStored.Inc()
}

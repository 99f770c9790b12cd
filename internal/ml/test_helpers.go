package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	Predictions map[string]int
	Failures    map[string]int // keyed model/reason
	Latencies   map[string][]float64
	Fallbacks   map[string]int // keyed model/field
	ModelAge    map[string]float64
	Timeouts    map[string]int
}

// NewMockMetrics returns a MockMetrics with its maps allocated.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Predictions: make(map[string]int),
		Failures:    make(map[string]int),
		Latencies:   make(map[string][]float64),
		Fallbacks:   make(map[string]int),
		ModelAge:    make(map[string]float64),
		Timeouts:    make(map[string]int),
	}
}

func (m *MockMetrics) PredictionsInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Predictions[model]++
}

func (m *MockMetrics) FailuresInc(model, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures[model+"/"+reason]++
}

func (m *MockMetrics) LatencyObserve(model string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Latencies[model] = append(m.Latencies[model], v)
}

func (m *MockMetrics) FallbacksInc(model, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fallbacks[model+"/"+field]++
}

func (m *MockMetrics) ModelAgeSet(model string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ModelAge[model] = v
}

func (m *MockMetrics) TimeoutsInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timeouts[model]++
}

// Count returns a counter value under the lock.
func (m *MockMetrics) Count(counter map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return counter[key]
}

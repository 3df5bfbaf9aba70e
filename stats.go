package docagent

import "sync"

// ExecutionStats contains counters and gauges for tracking execution metrics. All standard
// docagent metrics use keys prefixed with "docagent:" to avoid collisions with user-defined
// keys.
//
// # Counters vs Gauges
//
// Counters are monotonically increasing (only go up). Gauges can go up and down (via
// [ExecutionStats.IncrGauge], [ExecutionStats.SetGauge], [ExecutionStats.ResetGauge]). Use
// gauges for values that reset, such as consecutive parse errors.
//
// # Limit Checking
//
// Limit checking is triggered automatically when stats are modified. Both counters and
// gauges are checked against the limits configured on the owning [ExecutionContext].
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type ExecutionStats struct {
	mu       sync.RWMutex
	counters map[StatKey]int64
	gauges   map[StatKey]float64
	execCtx  *ExecutionContext // back-ref for limit checking
}

// NewExecutionStats creates a new ExecutionStats instance without context association.
// Use this for standalone stats that don't need limit checking.
func NewExecutionStats() *ExecutionStats {
	return &ExecutionStats{
		counters: make(map[StatKey]int64),
		gauges:   make(map[StatKey]float64),
	}
}

func newExecutionStatsWithContext(ctx *ExecutionContext) *ExecutionStats {
	s := NewExecutionStats()
	s.execCtx = ctx
	return s
}

// IncrCounter increments a counter by delta. Creates the counter if it doesn't exist.
//
// Panics if delta is negative (counters only go up).
// Protected keys (e.g., KeyIterations) are silently ignored.
func (s *ExecutionStats) IncrCounter(key StatKey, delta int64) {
	if delta < 0 {
		panic("docagent: IncrCounter called with negative delta")
	}
	if isProtectedKey(key) {
		return
	}
	s.incrCounterInternal(key, delta)
}

// incrCounterInternal increments a counter without the protected-key check.
// Used by the ExecutionContext for framework-owned keys.
func (s *ExecutionStats) incrCounterInternal(key StatKey, delta int64) {
	s.mu.Lock()
	s.counters[key] += delta
	s.mu.Unlock()

	if s.execCtx != nil {
		s.execCtx.checkLimits()
	}
}

// GetCounter returns the current value of a counter, or 0 if not set.
func (s *ExecutionStats) GetCounter(key StatKey) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key]
}

// IncrGauge increments a gauge by delta (positive or negative).
func (s *ExecutionStats) IncrGauge(key StatKey, delta float64) {
	s.mu.Lock()
	s.gauges[key] += delta
	s.mu.Unlock()

	if s.execCtx != nil {
		s.execCtx.checkLimits()
	}
}

// SetGauge sets a gauge to a specific value.
func (s *ExecutionStats) SetGauge(key StatKey, value float64) {
	s.mu.Lock()
	s.gauges[key] = value
	s.mu.Unlock()

	if s.execCtx != nil {
		s.execCtx.checkLimits()
	}
}

// GetGauge returns the current value of a gauge, or 0.0 if not set.
func (s *ExecutionStats) GetGauge(key StatKey) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gauges[key]
}

// ResetGauge sets a gauge to 0.0.
func (s *ExecutionStats) ResetGauge(key StatKey) {
	s.mu.Lock()
	s.gauges[key] = 0
	s.mu.Unlock()
}

// Counters returns a copy of all counters.
func (s *ExecutionStats) Counters() map[StatKey]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[StatKey]int64, len(s.counters))
	for k, v := range s.counters {
		result[k] = v
	}
	return result
}

// Gauges returns a copy of all gauges.
func (s *ExecutionStats) Gauges() map[StatKey]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[StatKey]float64, len(s.gauges))
	for k, v := range s.gauges {
		result[k] = v
	}
	return result
}

// GetIterations returns the number of iterations started.
func (s *ExecutionStats) GetIterations() int64 {
	return s.GetCounter(KeyIterations)
}

// GetTotalInputTokens returns the total input tokens across all models.
func (s *ExecutionStats) GetTotalInputTokens() int64 {
	return s.GetCounter(KeyInputTokens)
}

// GetTotalOutputTokens returns the total output tokens across all models.
func (s *ExecutionStats) GetTotalOutputTokens() int64 {
	return s.GetCounter(KeyOutputTokens)
}

// GetToolCallCount returns the total number of tool calls.
func (s *ExecutionStats) GetToolCallCount() int64 {
	return s.GetCounter(KeyToolCalls)
}

// GetParseErrorTotal returns the total number of malformed model outputs.
func (s *ExecutionStats) GetParseErrorTotal() int64 {
	return s.GetCounter(KeyParseErrorTotal)
}

// value returns the value for a key, checking counters first and then gauges.
func (s *ExecutionStats) value(key StatKey) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.counters[key]; ok {
		return float64(v), true
	}
	if v, ok := s.gauges[key]; ok {
		return v, true
	}
	return 0, false
}

// forEach calls fn for every counter and gauge key.
func (s *ExecutionStats) forEach(fn func(key StatKey, value float64)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.counters {
		fn(k, float64(v))
	}
	for k, v := range s.gauges {
		fn(k, v)
	}
}

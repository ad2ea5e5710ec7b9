package hooks

import (
	"sync"
	"sync/atomic"

	"github.com/openann19/petphotos/core"
)

// InMemoryMetrics accumulates metrics; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stepDurationsMs map[string]int64 // cumulative ms per step
	stepCalls       map[string]int64 // call count per step
	stepErrors      map[string]int64
	outcomes        map[core.Status]int64

	totalThroughputB int64
	uploadAttempts   int64
	failedAttempts   int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stepDurationsMs: make(map[string]int64),
		stepCalls:       make(map[string]int64),
		stepErrors:      make(map[string]int64),
		outcomes:        make(map[core.Status]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	ms := int64(d.Seconds() * 1000)
	m.mu.Lock()
	m.stepDurationsMs[stepName] += ms
	m.stepCalls[stepName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordError(stepName string, _ string) {
	m.mu.Lock()
	m.stepErrors[stepName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordUploadAttempt(_ int, err error) {
	atomic.AddInt64(&m.uploadAttempts, 1)
	if err != nil {
		atomic.AddInt64(&m.failedAttempts, 1)
	}
}

func (m *InMemoryMetrics) RecordOutcome(status core.Status) {
	m.mu.Lock()
	m.outcomes[status]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		StepDurationsMs:  copyMap(m.stepDurationsMs),
		StepCalls:        copyMap(m.stepCalls),
		StepErrors:       copyMap(m.stepErrors),
		Outcomes:         copyMap(m.outcomes),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
		UploadAttempts:   atomic.LoadInt64(&m.uploadAttempts),
		FailedAttempts:   atomic.LoadInt64(&m.failedAttempts),
	}
	return snap
}

func copyMap[K comparable](in map[K]int64) map[K]int64 {
	out := make(map[K]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StepDurationsMs  map[string]int64
	StepCalls        map[string]int64
	StepErrors       map[string]int64
	Outcomes         map[core.Status]int64
	TotalThroughputB int64
	UploadAttempts   int64
	FailedAttempts   int64
}

var _ core.MetricsCollector = (*InMemoryMetrics)(nil)

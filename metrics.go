package goadsym

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics defines the interface for collecting operational metrics.
// Implementations can export to various backends; PrometheusMetrics is
// provided, and InMemoryMetrics serves testing and debugging.
type Metrics interface {
	// Session metrics
	ConnectionAttempts()
	ConnectionSuccesses()
	ConnectionFailures()
	ConnectionActive(active bool)

	// Operation metrics, one pair per protocol round trip
	OperationStarted(operation string)
	OperationCompleted(operation string, duration time.Duration, err error)

	// Handle lifecycle metrics
	HandleAcquired()
	HandleReleased()

	// Error metrics
	ErrorOccurred(kind Kind, operation string)
}

// noopMetrics implements Metrics with no-op operations for minimal overhead.
type noopMetrics struct{}

func (n *noopMetrics) ConnectionAttempts()                                                    {}
func (n *noopMetrics) ConnectionSuccesses()                                                   {}
func (n *noopMetrics) ConnectionFailures()                                                    {}
func (n *noopMetrics) ConnectionActive(active bool)                                           {}
func (n *noopMetrics) OperationStarted(operation string)                                      {}
func (n *noopMetrics) OperationCompleted(operation string, duration time.Duration, err error) {}
func (n *noopMetrics) HandleAcquired()                                                        {}
func (n *noopMetrics) HandleReleased()                                                        {}
func (n *noopMetrics) ErrorOccurred(kind Kind, operation string)                              {}

// DefaultMetrics is a no-op metrics collector to minimize overhead when
// metrics are not configured.
var DefaultMetrics Metrics = &noopMetrics{}

// InMemoryMetrics provides a simple in-memory metrics collector.
type InMemoryMetrics struct {
	mu sync.Mutex

	ConnectionAttemptsCount  atomic.Int64
	ConnectionSuccessesCount atomic.Int64
	ConnectionFailuresCount  atomic.Int64
	ConnectionActiveState    atomic.Bool

	HandlesAcquiredCount atomic.Int64
	HandlesReleasedCount atomic.Int64

	OperationCounts    map[string]int64
	OperationDurations map[string][]time.Duration
	OperationErrors    map[string]int64
	ErrorsByKind       map[Kind]int64
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		OperationCounts:    make(map[string]int64),
		OperationDurations: make(map[string][]time.Duration),
		OperationErrors:    make(map[string]int64),
		ErrorsByKind:       make(map[Kind]int64),
	}
}

func (m *InMemoryMetrics) ConnectionAttempts() {
	m.ConnectionAttemptsCount.Add(1)
}

func (m *InMemoryMetrics) ConnectionSuccesses() {
	m.ConnectionSuccessesCount.Add(1)
}

func (m *InMemoryMetrics) ConnectionFailures() {
	m.ConnectionFailuresCount.Add(1)
}

func (m *InMemoryMetrics) ConnectionActive(active bool) {
	m.ConnectionActiveState.Store(active)
}

func (m *InMemoryMetrics) OperationStarted(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OperationCounts[operation]++
}

func (m *InMemoryMetrics) OperationCompleted(operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OperationDurations[operation] = append(m.OperationDurations[operation], duration)
	if err != nil {
		m.OperationErrors[operation]++
	}
}

func (m *InMemoryMetrics) HandleAcquired() {
	m.HandlesAcquiredCount.Add(1)
}

func (m *InMemoryMetrics) HandleReleased() {
	m.HandlesReleasedCount.Add(1)
}

func (m *InMemoryMetrics) ErrorOccurred(kind Kind, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorsByKind[kind]++
}

// OperationCount returns how many times the operation was started.
func (m *InMemoryMetrics) OperationCount(operation string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.OperationCounts[operation]
}

// ErrorCount returns how many errors of the given kind occurred.
func (m *InMemoryMetrics) ErrorCount(kind Kind) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ErrorsByKind[kind]
}

// LiveHandles returns acquired minus released handles.
func (m *InMemoryMetrics) LiveHandles() int64 {
	return m.HandlesAcquiredCount.Load() - m.HandlesReleasedCount.Load()
}

package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	recomputeCount int64
	recomputeFails int64
	erroredTickets int64
	lastRecompute  time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordRecompute tracks the outcome of one batch recomputation pass.
func (m *Metrics) RecordRecompute(duration time.Duration, errored int, succeeded bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputeCount++
	if !succeeded {
		m.recomputeFails++
	}
	m.erroredTickets += int64(errored)
	m.lastRecompute = duration
}

// RecomputeStats returns pass counters for diagnostics.
func (m *Metrics) RecomputeStats() (passes, failures, erroredTickets int64, lastDuration time.Duration) {
	if m == nil {
		return 0, 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recomputeCount, m.recomputeFails, m.erroredTickets, m.lastRecompute
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

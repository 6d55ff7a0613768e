// File: server/metrics.go
package server

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the per-event duration window used for percentiles.
const maxSamples = 512

// Metrics counts event outcomes and tracks per-event handling times. All
// methods are safe for concurrent use.
type Metrics struct {
	mu               sync.Mutex
	processed        map[string]int64
	rejected         map[string]int64
	validationErrors int64
	rateLimited      int64
	startedAt        time.Time
	samples          map[string][]time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		processed: make(map[string]int64),
		rejected:  make(map[string]int64),
		samples:   make(map[string][]time.Duration),
		startedAt: time.Now(),
	}
}

func (m *Metrics) Processed(event string, took time.Duration) {
	m.mu.Lock()
	m.processed[event]++
	window := append(m.samples[event], took)
	if len(window) > maxSamples {
		window = window[len(window)-maxSamples:]
	}
	m.samples[event] = window
	m.mu.Unlock()
}

func (m *Metrics) Rejected(event string) {
	m.mu.Lock()
	m.rejected[event]++
	m.mu.Unlock()
}

func (m *Metrics) ValidationError() {
	m.mu.Lock()
	m.validationErrors++
	m.mu.Unlock()
}

func (m *Metrics) RateLimited() {
	m.mu.Lock()
	m.rateLimited++
	m.mu.Unlock()
}

// EventStats is one event's row in the /stats payload.
type EventStats struct {
	Processed int64   `json:"processed"`
	Rejected  int64   `json:"rejected"`
	P50Ms     float64 `json:"p50Ms"`
	P95Ms     float64 `json:"p95Ms"`
}

// Snapshot renders every counter for the stats endpoint.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make(map[string]EventStats, len(m.processed))
	var totalProcessed int64
	for event, count := range m.processed {
		totalProcessed += count
		p50, p95 := percentiles(m.samples[event])
		events[event] = EventStats{
			Processed: count,
			Rejected:  m.rejected[event],
			P50Ms:     p50,
			P95Ms:     p95,
		}
	}
	for event, count := range m.rejected {
		if _, ok := events[event]; !ok {
			events[event] = EventStats{Rejected: count}
		}
	}

	uptime := time.Since(m.startedAt).Seconds()
	eventsPerSec := 0.0
	if uptime > 0 {
		eventsPerSec = float64(totalProcessed) / uptime
	}
	return map[string]interface{}{
		"events":           events,
		"validationErrors": m.validationErrors,
		"rateLimited":      m.rateLimited,
		"eventsPerSec":     eventsPerSec,
		"uptimeSec":        uptime,
	}
}

func percentiles(window []time.Duration) (p50, p95 float64) {
	if len(window) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(q float64) float64 {
		idx := int(q * float64(len(sorted)-1))
		return float64(sorted[idx].Microseconds()) / 1000
	}
	return at(0.50), at(0.95)
}

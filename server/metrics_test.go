// File: server/metrics_test.go
package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounts(t *testing.T) {
	m := NewMetrics()
	m.Processed("chat_message", time.Millisecond)
	m.Processed("chat_message", 2*time.Millisecond)
	m.Rejected("ball_update")
	m.ValidationError()
	m.RateLimited()

	snap := m.Snapshot()
	events := snap["events"].(map[string]EventStats)
	assert.Equal(t, int64(2), events["chat_message"].Processed)
	assert.Equal(t, int64(1), events["ball_update"].Rejected)
	assert.Equal(t, int64(1), snap["validationErrors"])
	assert.Equal(t, int64(1), snap["rateLimited"])
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()
	// Out-of-order durations; percentiles sort internally.
	for _, ms := range []int{9, 1, 5, 3, 7, 2, 8, 4, 6, 10} {
		m.Processed("player_input", time.Duration(ms)*time.Millisecond)
	}

	events := m.Snapshot()["events"].(map[string]EventStats)
	stats := events["player_input"]
	assert.InDelta(t, 5.0, stats.P50Ms, 1.0)
	assert.InDelta(t, 9.0, stats.P95Ms, 1.5)
}

func TestMetricsSampleWindowBounded(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < maxSamples+100; i++ {
		m.Processed("player_input", time.Microsecond)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.LessOrEqual(t, len(m.samples["player_input"]), maxSamples)
}

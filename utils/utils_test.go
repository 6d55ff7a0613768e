package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	testCases := []struct {
		name       string
		v, lo, hi  float32
		expected   float32
	}{
		{"below range", -5, 0, 10, 0},
		{"above range", 15, 0, 10, 10},
		{"inside range", 5, 0, 10, 5},
		{"at lower bound", 0, 0, 10, 0},
		{"at upper bound", 10, 0, 10, 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Clamp(tc.v, tc.lo, tc.hi))
		})
	}
}

func TestRounding(t *testing.T) {
	assert.Equal(t, float32(1.2), Round1(1.24))
	assert.Equal(t, float32(1.3), Round1(1.25))
	assert.Equal(t, float32(-0.5), Round1(-0.46))
	assert.Equal(t, float32(3.14), Round2(3.14159))
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(0, 0, 3, 4), 1e-6)
	assert.InDelta(t, 0.0, Distance(7, 7, 7, 7), 1e-6)
}

func TestConfigDefaultsValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 240, cfg.TickHz)
	assert.InDelta(t, 1.0/240.0, float64(cfg.Dt()), 1e-9)

	cfg.TickHz = 0
	assert.Error(t, cfg.Validate())

	bad := DefaultConfig()
	bad.GoalHeight = bad.FieldHeight + 1
	assert.Error(t, bad.Validate())
}

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBaseline(t *testing.T) {
	values := []float64{1000, 1050, 950, 1000, 550}

	b, err := ComputeBaseline(values, DefaultWindow, MinDataPoints)
	require.NoError(t, err)

	assert.Equal(t, 4, b.Count)
	assert.InDelta(t, 1000.0, b.Mean, 0.001)
	assert.InDelta(t, 35.355, b.StdDev, 0.01)
}

func TestComputeBaseline_Window(t *testing.T) {
	// 10 periods of 100 followed by 5 of 200; a 5-period window must
	// only see the 200s.
	values := make([]float64, 0, 16)
	for i := 0; i < 10; i++ {
		values = append(values, 100)
	}
	for i := 0; i < 5; i++ {
		values = append(values, 200)
	}
	values = append(values, 300) // current

	b, err := ComputeBaseline(values, 5, MinDataPoints)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Count)
	assert.Equal(t, 200.0, b.Mean)
	assert.Equal(t, 0.0, b.StdDev)
}

func TestComputeBaseline_InsufficientData(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"empty", nil},
		{"single value", []float64{100}},
		{"two populated periods", []float64{100, 120}},
		{"fewer than min points", []float64{100, 120, 500}},
		{"zero baseline", []float64{0, 0, 0, 0, 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeBaseline(tt.values, DefaultWindow, MinDataPoints)
			assert.ErrorIs(t, err, ErrInsufficientData)
		})
	}
}

func TestComputeDeviation(t *testing.T) {
	b := Baseline{Mean: 1000, StdDev: 50, Count: 28}

	d := ComputeDeviation(550, b)
	assert.InDelta(t, -45.0, d.Pct, 0.001)
	assert.InDelta(t, 9.0, d.Sigma, 0.001)

	d = ComputeDeviation(1200, b)
	assert.InDelta(t, 20.0, d.Pct, 0.001)
}

func TestDeviation_ExceedsBoundary(t *testing.T) {
	b := Baseline{Mean: 1000, StdDev: 50, Count: 28}

	// Exactly at the threshold classifies as flagged, consistently.
	exact := ComputeDeviation(1200, b)
	for i := 0; i < 10; i++ {
		assert.True(t, exact.Exceeds(20.0))
	}

	below := ComputeDeviation(1199, b)
	assert.False(t, below.Exceeds(20.0))

	negative := ComputeDeviation(800, b)
	assert.True(t, negative.Exceeds(20.0))
}

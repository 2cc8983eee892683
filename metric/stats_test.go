package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(median(nil)))

	x := []float64{3, 1, 2}
	median(x)
	assert.Equal(t, []float64{3, 1, 2}, x)
}

func TestMadStd(t *testing.T) {
	assert.InDelta(t, madStdScale*0.03, madStd([]float64{0.01, 0.04, 0.09}), 1e-15)
	assert.Equal(t, 0.0, madStd([]float64{5, 5, 5}))
}

func TestBinIndex(t *testing.T) {
	edges := []float64{1, 2, 3}
	tests := []struct {
		x    float64
		want int
	}{
		{x: 0.5, want: -1},
		{x: 1, want: 0},
		{x: 1.5, want: 0},
		{x: 2, want: 1},
		{x: 2.9, want: 1},
		{x: 3, want: 1},
		{x: 3.1, want: -1},
		{x: math.NaN(), want: -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, binIndex(edges, tt.x), "x=%v", tt.x)
	}
}

func TestLogBins(t *testing.T) {
	edges := LogBins(0, 2, 3)
	assert.InDeltaSlice(t, []float64{1, 10, 100}, edges, 1e-12)

	edges = LogBins(-2, math.Log10(3650), 16)
	assert.Len(t, edges, 16)
	assert.InDelta(t, 0.01, edges[0], 1e-15)
	assert.InDelta(t, 3650, edges[15], 1e-9)
	assert.True(t, increasing(edges))

	assert.Nil(t, LogBins(0, 1, 1))
}

func TestUniformWeights(t *testing.T) {
	w := UniformWeights(15)
	assert.Len(t, w, 15)
	assert.InDelta(t, 1.0/15, w[7], 1e-15)
	assert.Nil(t, UniformWeights(0))
}

func TestPhotometricError(t *testing.T) {
	assert.InDelta(t, 5, SNR(24, 24), 1e-12)
	assert.InDelta(t, 2.5*math.Log10(1.2), PhotometricError(24, 24), 1e-12)
	assert.Less(t, PhotometricError(22, 24), PhotometricError(24, 24))
}

func TestSummaries(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	for _, tt := range []struct {
		summary Summary
		want    float64
	}{
		{summary: Median{}, want: 2.5},
		{summary: Mean{}, want: 2.5},
		{summary: Rms{}, want: math.Sqrt(1.25)},
	} {
		got, ok := tt.summary.Reduce(values)
		assert.True(t, ok, tt.summary.Name())
		assert.InDelta(t, tt.want, got, 1e-12, tt.summary.Name())

		_, ok = tt.summary.Reduce(nil)
		assert.False(t, ok, tt.summary.Name())
	}

	s, err := SummaryByName("rms")
	assert.NoError(t, err)
	assert.Equal(t, "Rms", s.Name())

	_, err = SummaryByName("Max")
	assert.Error(t, err)
}

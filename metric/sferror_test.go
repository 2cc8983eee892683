package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farwydi/sferror"
)

func visitsAt(times []float64, magErr []float64) []sferror.Visit {
	visits := make([]sferror.Visit, len(times))
	for i := range times {
		visits[i] = sferror.Visit{
			ObservationStartMJD: 60000 + times[i],
			VisitExposureTime:   30,
			Filter:              "u",
			MagErr:              magErr[i],
		}
	}
	return visits
}

func TestName(t *testing.T) {
	m, err := NewSFError(Config{Mag: 24.15, Band: "u"})
	require.NoError(t, err)
	assert.Equal(t, "SFError_24.15_u", m.Name())

	m, err = NewSFError(Config{Mag: 22, Band: "r"})
	require.NoError(t, err)
	assert.Equal(t, "SFError_22_r", m.Name())
	assert.Equal(t, "mag", m.Units())
	assert.EqualValues(t, -666, m.BadValue())
}

func TestValidation(t *testing.T) {
	_, err := NewSFError(Config{Mag: 24, Band: "x"})
	assert.ErrorIs(t, err, ErrBand)

	_, err = NewSFError(Config{Mag: 24, Band: "g", Bins: []float64{1, 1, 2}})
	assert.ErrorIs(t, err, ErrBins)

	_, err = NewSFError(Config{Mag: 24, Band: "g", Bins: []float64{1, 2, 3}, Weights: []float64{1}})
	assert.ErrorIs(t, err, ErrWeights)

	m, err := NewSFError(Config{Mag: 24, Band: "g", Bins: []float64{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, m.cfg.Weights)
}

func TestRunAllGaps(t *testing.T) {
	m, err := NewSFError(Config{Mag: 24.15, Band: "u"})
	require.NoError(t, err)

	// gaps 1.5, 8.5 and 10 days land in bins 0, 2 and 2
	got, ok := m.Run(visitsAt([]float64{0, 1.5, 10}, []float64{0.1, 0.2, 0.3}))
	require.True(t, ok)

	mu := 0.04
	sd := madStdScale * 0.03
	want := 0.1 * (2*(mu+sd) + 2*(mu+sd/math.Sqrt(2)) + 8*2*(mu+sd/math.Sqrt(emptyBinCount)))
	assert.InDelta(t, want, got, 1e-12)
}

func TestRunConsecutiveGaps(t *testing.T) {
	m, err := NewSFError(Config{Mag: 24.15, Band: "u", ConsecutiveGaps: true})
	require.NoError(t, err)

	got, ok := m.Run(visitsAt([]float64{10, 0, 1.5}, []float64{0.1, 0.1, 0.1}))
	require.True(t, ok)

	// without scatter in the errors every bin contributes 2*mu
	assert.InDelta(t, 0.02, got, 1e-12)
}

func TestRunBadValue(t *testing.T) {
	m, err := NewSFError(Config{Mag: 24.15, Band: "u"})
	require.NoError(t, err)

	got, ok := m.Run(nil)
	assert.False(t, ok)
	assert.EqualValues(t, -666, got)

	visits := visitsAt([]float64{0, 3}, []float64{0.1, 0.1})
	visits[1].VisitExposureTime = 5.1
	got, ok = m.Run(visits)
	assert.False(t, ok)
	assert.EqualValues(t, -666, got)
}

func TestRunIgnoresSimultaneousVisits(t *testing.T) {
	m, err := NewSFError(Config{Mag: 24.15, Band: "u", Bins: []float64{1, 10}, Weights: []float64{1}})
	require.NoError(t, err)

	got, ok := m.Run(visitsAt([]float64{0, 0, 2}, []float64{0.1, 0.1, 0.1}))
	require.True(t, ok)
	assert.InDelta(t, 0.02, got, 1e-12)
	assert.Equal(t, []float64{2}, m.pairCounts([]float64{0, 0, 2}))
}

func TestHalfPrecisionGaps(t *testing.T) {
	bins := []float64{1, 3000.2, 3650}
	times := []float64{0, 3000.3}

	half, err := NewSFError(Config{Mag: 24, Band: "r", Bins: bins})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, half.pairCounts(times))

	full, err := NewSFError(Config{Mag: 24, Band: "r", Bins: bins, FullPrecision: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, full.pairCounts(times))
}

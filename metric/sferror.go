// Package metric implements the structure function uncertainty metric and
// the summary statistics reported over its sky maps.
package metric

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/floats"

	"github.com/farwydi/sferror"
)

const Bands = "ugrizy"

var (
	ErrBand    = errors.New("band must be one of u, g, r, i, z, y")
	ErrBins    = errors.New("bin edges must be strictly increasing with at least two edges")
	ErrWeights = errors.New("one weight per bin is required")
)

// emptyBinCount replaces a zero pair count so the 1/sqrt(n) term stays
// finite.
const emptyBinCount = 0.01

// Config defines the config for the SF error metric.
type Config struct {
	// Mag is the source magnitude the photometric errors are stacked for.
	Mag float64
	// Band is the filter the visits were taken in.
	Band string
	// ConsecutiveGaps uses only gaps between neighbouring visits instead of
	// every pair of visits.
	ConsecutiveGaps bool
	// FullPrecision keeps pair gaps in float64. By default they are rounded
	// through IEEE half precision before binning.
	FullPrecision bool
	// Bins are the time gap bin edges in days.
	Bins []float64
	// Weights are applied to the per bin SF variance, one per bin.
	Weights []float64
	// MinExposure drops visits with an exposure time at or below it, seconds.
	MinExposure float64
	// BadValue marks slice points where the metric cannot be evaluated.
	BadValue float64
	Units    string
}

// ConfigDefault is the default config
var ConfigDefault = Config{
	Bins:        LogBins(0, math.Log10(3650), 11),
	Weights:     []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1},
	MinExposure: 5.1,
	BadValue:    -666,
	Units:       "mag",
}

// Helper function to set default values
func configDefault(config ...Config) Config {
	// Return default config if nothing provided
	if len(config) < 1 {
		return ConfigDefault
	}

	// Override default config
	cfg := config[0]

	if len(cfg.Bins) == 0 {
		cfg.Bins = ConfigDefault.Bins
		if len(cfg.Weights) == 0 {
			cfg.Weights = ConfigDefault.Weights
		}
	}

	if len(cfg.Weights) == 0 {
		cfg.Weights = UniformWeights(len(cfg.Bins) - 1)
	}

	if cfg.MinExposure == 0 {
		cfg.MinExposure = ConfigDefault.MinExposure
	}

	if cfg.BadValue == 0 {
		cfg.BadValue = ConfigDefault.BadValue
	}

	if cfg.Units == "" {
		cfg.Units = ConfigDefault.Units
	}

	return cfg
}

// SFError estimates the uncertainty of a structure function measured from
// the visits of one slice point.
type SFError struct {
	cfg  Config
	name string
}

func NewSFError(config ...Config) (*SFError, error) {
	cfg := configDefault(config...)

	cfg.Band = strings.TrimSpace(cfg.Band)
	if len(cfg.Band) != 1 || !strings.Contains(Bands, cfg.Band) {
		return nil, fmt.Errorf("%w: %q", ErrBand, cfg.Band)
	}
	if len(cfg.Bins) < 2 || !increasing(cfg.Bins) {
		return nil, ErrBins
	}
	if len(cfg.Weights) != len(cfg.Bins)-1 {
		return nil, fmt.Errorf("%w: %d bins, %d weights", ErrWeights, len(cfg.Bins)-1, len(cfg.Weights))
	}

	return &SFError{
		cfg:  cfg,
		name: "SFError_" + strconv.FormatFloat(cfg.Mag, 'f', -1, 64) + "_" + cfg.Band,
	}, nil
}

func (m *SFError) Name() string {
	return m.name
}

func (m *SFError) Mag() float64 {
	return m.cfg.Mag
}

func (m *SFError) Band() string {
	return m.cfg.Band
}

func (m *SFError) Units() string {
	return m.cfg.Units
}

func (m *SFError) BadValue() float64 {
	return m.cfg.BadValue
}

// Run evaluates the metric. MagErr must already be stacked on the visits.
// ok is false and value is BadValue when fewer than two usable visits remain.
func (m *SFError) Run(visits []sferror.Visit) (value float64, ok bool) {
	times := make([]float64, 0, len(visits))
	errVar := make([]float64, 0, len(visits))
	for _, v := range visits {
		if v.VisitExposureTime <= m.cfg.MinExposure {
			continue
		}
		times = append(times, v.ObservationStartMJD)
		errVar = append(errVar, v.MagErr*v.MagErr)
	}

	if len(times) < 2 {
		return m.cfg.BadValue, false
	}

	sort.Float64s(times)

	counts := m.pairCounts(times)

	mu := median(errVar)
	sd := madStd(errVar)

	sfVar := make([]float64, len(counts))
	for i, n := range counts {
		if n == 0 {
			n = emptyBinCount
		}
		sfVar[i] = 2 * (mu + sd/math.Sqrt(n))
	}

	return floats.Dot(sfVar, m.cfg.Weights), true
}

// pairCounts histograms the time gaps of sorted times into the metric bins.
func (m *SFError) pairCounts(times []float64) []float64 {
	counts := make([]float64, len(m.cfg.Bins)-1)

	if m.cfg.ConsecutiveGaps {
		for i := 1; i < len(times); i++ {
			if b := binIndex(m.cfg.Bins, times[i]-times[i-1]); b >= 0 {
				counts[b]++
			}
		}
		return counts
	}

	for i := 0; i < len(times); i++ {
		for j := i + 1; j < len(times); j++ {
			dt := times[j] - times[i]
			if dt <= 0 {
				continue
			}
			if !m.cfg.FullPrecision {
				dt = float64(float16.Fromfloat32(float32(dt)).Float32())
			}
			if b := binIndex(m.cfg.Bins, dt); b >= 0 {
				counts[b]++
			}
		}
	}
	return counts
}

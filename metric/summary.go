package metric

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Summary reduces the valid values of a metric map to one number.
type Summary interface {
	Name() string
	Reduce(values []float64) (float64, bool)
}

type Median struct{}

func (Median) Name() string { return "Median" }

func (Median) Reduce(values []float64) (float64, bool) {
	if len(values) == 0 {
		return math.NaN(), false
	}
	return median(values), true
}

type Mean struct{}

func (Mean) Name() string { return "Mean" }

func (Mean) Reduce(values []float64) (float64, bool) {
	if len(values) == 0 {
		return math.NaN(), false
	}
	return stat.Mean(values, nil), true
}

// Rms is the population standard deviation.
type Rms struct{}

func (Rms) Name() string { return "Rms" }

func (Rms) Reduce(values []float64) (float64, bool) {
	if len(values) == 0 {
		return math.NaN(), false
	}
	return math.Sqrt(stat.Moment(2, values, nil)), true
}

// SummaryByName resolves a summary from its case insensitive name.
func SummaryByName(name string) (Summary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "median":
		return Median{}, nil
	case "mean":
		return Mean{}, nil
	case "rms":
		return Rms{}, nil
	}
	return nil, fmt.Errorf("unknown summary metric %q", name)
}

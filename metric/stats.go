package metric

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// madStdScale turns a median absolute deviation into the standard deviation
// of a normal distribution.
const madStdScale = 1.482602218505602

// median averages the two middle samples for an even count. x is not
// modified.
func median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	s := make([]float64, n)
	copy(s, x)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func madStd(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := median(x)
	dev := make([]float64, len(x))
	for i, v := range x {
		dev[i] = math.Abs(v - m)
	}
	return madStdScale * median(dev)
}

// binIndex finds the histogram bin holding x. Bins are half open except the
// last one, which also holds the upper edge. It returns -1 outside the edges.
func binIndex(edges []float64, x float64) int {
	last := len(edges) - 1
	if last < 1 || math.IsNaN(x) || x < edges[0] || x > edges[last] {
		return -1
	}
	if x == edges[last] {
		return last - 1
	}
	i := sort.SearchFloat64s(edges, x)
	if edges[i] == x {
		return i
	}
	return i - 1
}

// LogBins returns num edges spaced evenly in log10 between 10^start and
// 10^stop.
func LogBins(start, stop float64, num int) []float64 {
	if num < 2 {
		return nil
	}
	edges := floats.Span(make([]float64, num), start, stop)
	for i, e := range edges {
		edges[i] = math.Pow(10, e)
	}
	return edges
}

// UniformWeights returns n equal weights summing to one.
func UniformWeights(n int) []float64 {
	if n < 1 {
		return nil
	}
	w := make([]float64, n)
	floats.AddConst(1/float64(n), w)
	return w
}

func increasing(x []float64) bool {
	for i := 1; i < len(x); i++ {
		if !(x[i] > x[i-1]) {
			return false
		}
	}
	return true
}

package sky

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// pointing is one visit direction with its position in the visit slice.
type pointing struct {
	xyz [3]float64
	idx int
}

var _ kdtree.Comparable = pointing{}

func (p pointing) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.xyz[d] - c.(pointing).xyz[d]
}

func (p pointing) Dims() int {
	return 3
}

// Distance is the squared chord length between two directions.
func (p pointing) Distance(c kdtree.Comparable) float64 {
	q := c.(pointing)
	var sum float64
	for i := range p.xyz {
		d := p.xyz[i] - q.xyz[i]
		sum += d * d
	}
	return sum
}

type pointings []pointing

func (p pointings) Index(i int) kdtree.Comparable { return p[i] }
func (p pointings) Len() int                      { return len(p) }
func (p pointings) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}
func (p pointings) Pivot(d kdtree.Dim) int {
	return plane{pointings: p, Dim: d}.Pivot()
}

type plane struct {
	pointings
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.pointings[i].xyz[p.Dim] < p.pointings[j].xyz[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.pointings = p.pointings[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.pointings[i], p.pointings[j] = p.pointings[j], p.pointings[i]
}

// Index answers cone searches over a fixed set of pointings.
type Index struct {
	tree *kdtree.Tree
	size int
}

// NewIndex builds an index over pointings given as parallel RA and Dec
// slices in degrees.
func NewIndex(ra, dec []float64) *Index {
	n := len(ra)
	if len(dec) < n {
		n = len(dec)
	}
	pts := make(pointings, n)
	for i := 0; i < n; i++ {
		pts[i] = pointing{xyz: unitVector(ra[i], dec[i]), idx: i}
	}

	idx := &Index{size: n}
	if n > 0 {
		idx.tree = kdtree.New(pts, false)
	}
	return idx
}

func (x *Index) Len() int {
	return x.size
}

// Within returns, in ascending order, the positions of the pointings lying
// at most radius degrees away from ra, dec.
func (x *Index) Within(ra, dec, radius float64) []int {
	if x.tree == nil {
		return nil
	}

	keep := kdtree.NewDistKeeper(chord2(radius))
	x.tree.NearestSet(keep, pointing{xyz: unitVector(ra, dec), idx: -1})

	out := make([]int, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		out = append(out, c.Comparable.(pointing).idx)
	}
	sort.Ints(out)
	return out
}
